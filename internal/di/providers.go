package di

import (
	"complywatch/internal/controllers"
	"complywatch/internal/providers"
	"complywatch/internal/storage"
	"complywatch/internal/structures"
)

func provideLogger(conf *structures.Config) (providers.Logger, func(), error) {
	logger, err := providers.NewLogProvider(conf)
	if err != nil {
		return nil, nil, err
	}
	return logger, logger.Close, nil
}

func providePinger(store storage.StoreInterface) controllers.Pinger {
	return store
}
