package storage

import (
	"complywatch/internal/providers"
	"fmt"
	json "github.com/goccy/go-json"
	"os"
	"path/filepath"
)

// FileManager persists a MemoryStore as zstd-compressed JSON. Writes go to a
// temp file first and are renamed into place.
type FileManager struct {
	store      *MemoryStore
	compressor CompressorInterface
	logger     providers.Logger
}

func NewFileManager(compressor CompressorInterface, store *MemoryStore, logger providers.Logger) *FileManager {
	return &FileManager{
		compressor: compressor,
		store:      store,
		logger:     logger,
	}
}

func (f *FileManager) SaveToFile(fileName string) error {
	jsonData, err := json.Marshal(f.store.Snapshot())
	if err != nil {
		return err
	}
	data, err := f.compressor.Compress(jsonData)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(fileName); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmpFile := fileName + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	if _, err = file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, fileName)
}

// LoadFromFile restores the store from fileName. A missing file is not an
// error; the store simply starts empty.
func (f *FileManager) LoadFromFile(fileName string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		if os.IsNotExist(err) {
			f.logger.Infof(providers.TypeApp, "No state file at %s, starting empty", fileName)
			return nil
		}
		return err
	}

	decompressed, err := f.compressor.Decompress(data)
	if err != nil {
		return err
	}

	var snap MemorySnapshot
	if err := json.Unmarshal(decompressed, &snap); err != nil {
		return fmt.Errorf("decode state file: %w", err)
	}
	if err := f.store.Load(&snap); err != nil {
		return err
	}
	f.logger.Infof(providers.TypeApp, "Restored %d websites and %d users from %s", len(snap.Websites), len(snap.Users), fileName)
	return nil
}

func (f *FileManager) Close() {
	f.compressor.Close()
}
