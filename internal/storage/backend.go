package storage

import (
	"complywatch/internal/providers"
	"complywatch/internal/structures"
	"context"
	"fmt"
	"time"
)

const connectTimeout = 10 * time.Second

// Backend is the store selected by storage.driver. Files is only set for the
// memory driver, which survives restarts through the state file.
type Backend struct {
	Store StoreInterface
	Files *FileManager
}

func NewBackend(conf *structures.Config, logger providers.Logger) (*Backend, func(), error) {
	switch conf.Storage.Driver {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		store, err := ConnectPostgres(ctx, conf.Storage.DSN, conf.Storage.MaxConns)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		logger.Infof(providers.TypeApp, "Storage: postgres")
		return &Backend{Store: store}, store.Close, nil
	default:
		store := NewMemoryStore()
		backend := &Backend{Store: store}
		if conf.Storage.FilePath == "" {
			logger.Warnf(providers.TypeApp, "Storage: memory without filePath, state is lost on restart")
			return backend, func() {}, nil
		}
		compressor, err := NewZstdCompressor()
		if err != nil {
			return nil, nil, err
		}
		backend.Files = NewFileManager(compressor, store, logger)
		logger.Infof(providers.TypeApp, "Storage: memory, persisted to %s", conf.Storage.FilePath)
		return backend, backend.Files.Close, nil
	}
}
