// Package app wires the store, repositories, service and router from a
// Config. The server, the CLI and the serverless entry share it.
package app

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/kv-shortener/pkg/adapters/handler"
	"github.com/wadjakorntonsri/kv-shortener/pkg/adapters/lock"
	"github.com/wadjakorntonsri/kv-shortener/pkg/adapters/repository/kv"
	"github.com/wadjakorntonsri/kv-shortener/pkg/adapters/store"
	"github.com/wadjakorntonsri/kv-shortener/pkg/config"
	"github.com/wadjakorntonsri/kv-shortener/pkg/core/classifier"
	"github.com/wadjakorntonsri/kv-shortener/pkg/core/services"
	"github.com/wadjakorntonsri/kv-shortener/pkg/ports"
)

type App struct {
	Config  *config.Config
	Store   ports.KeyValueStore
	Links   *kv.LinkRepository
	Stats   *kv.StatsRepository
	Service *services.LinkService

	log       *zap.Logger
	closeLock func() error
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	kvStore, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	locker, closeLock, err := lock.New(ctx, cfg, kvStore)
	if err != nil {
		kvStore.Close()
		return nil, err
	}

	links := kv.NewLinkRepository(kvStore, kv.Format(cfg.LinkFormat), log.Named("links"))
	stats := kv.NewStatsRepository(kvStore, locker, log.Named("stats"))
	service := services.NewLinkService(links, stats, services.Options{
		PageSize:       cfg.PageSize,
		AllowOverwrite: cfg.AllowOverwrite,
		Classifier:     classifier.Default(cfg.CrawlerSignatures...),
	})

	log.Info("store opened",
		zap.String("store", redactURL(cfg.StoreURL)),
		zap.String("link_format", cfg.LinkFormat),
		zap.String("visit_lock", cfg.VisitLock))

	return &App{
		Config:    cfg,
		Store:     kvStore,
		Links:     links,
		Stats:     stats,
		Service:   service,
		log:       log,
		closeLock: closeLock,
	}, nil
}

func (a *App) Router() http.Handler {
	return handler.NewRouter(a.Config, a.Service, a.log.Named("http"))
}

func (a *App) Close() error {
	return errors.Join(a.closeLock(), a.Store.Close())
}
