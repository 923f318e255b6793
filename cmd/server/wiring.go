package main

import (
	"context"
	"fmt"
	"os"

	"codeshare/internal/config"
	"codeshare/internal/database"
	"codeshare/internal/memory"
	"codeshare/internal/repository"
	"codeshare/internal/service"
	"codeshare/internal/storage"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

func newLogger(cfg config.LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json", "":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log.format %q", cfg.Format)
	}
	return logger, nil
}

type repositories struct {
	users  repository.UserRepository
	shares repository.ShareRepository
	pinger repository.Pinger
	close  func()
}

func openRepositories(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*repositories, error) {
	if cfg.DB.Driver == "memory" {
		log.Warn("using the in-memory repository, all data is lost on exit")
		db := memory.New()
		return &repositories{users: db, shares: db, pinger: db, close: func() {}}, nil
	}

	store, err := database.Connect(ctx, cfg.DB.Source)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	log.Info("connected to postgres")
	return &repositories{users: store, shares: store, pinger: store, close: store.Close}, nil
}

func openContentStore(cfg *config.Config, log logrus.FieldLogger) (storage.ContentStore, error) {
	switch cfg.Storage.Type {
	case "s3":
		s3cfg := cfg.Storage.S3
		store, err := storage.NewS3Storage(storage.S3Config{
			Endpoint:       s3cfg.Endpoint,
			Region:         s3cfg.Region,
			Bucket:         s3cfg.Bucket,
			AccessKey:      s3cfg.AccessKey,
			SecretKey:      s3cfg.SecretKey,
			Prefix:         s3cfg.Prefix,
			ForcePathStyle: s3cfg.ForcePathStyle,
		})
		if err != nil {
			return nil, err
		}
		log.WithField("bucket", s3cfg.Bucket).Info("storing content in s3")
		return store, nil
	default:
		store, err := storage.NewLocalStorage(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		log.WithField("path", store.BasePath()).Info("storing content on local disk")
		return store, nil
	}
}

// shareOptions maps config to service options. An empty extension list
// means the built-in list; a "*" entry allows any extension.
func shareOptions(cfg config.SharesConfig) service.ShareOptions {
	exts := cfg.AllowedExtensions
	switch {
	case len(exts) == 0:
		exts = service.DefaultAllowedExtensions
	case lo.Contains(exts, "*"):
		exts = nil
	}
	return service.ShareOptions{
		MaxFileBytes:      cfg.MaxFileBytes,
		MaxTextBytes:      cfg.MaxTextBytes,
		AllowedExtensions: exts,
		MaxCodeAttempts:   cfg.MaxCodeAttempts,
	}
}
