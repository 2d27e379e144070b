package handler

import (
	"context"
	"net/http"

	"github.com/wadjakorntonsri/kv-shortener/pkg/app"
	"github.com/wadjakorntonsri/kv-shortener/pkg/config"
	"github.com/wadjakorntonsri/kv-shortener/pkg/logger"
)

var mux http.Handler

func init() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.AppEnv)
	if err != nil {
		panic(err)
	}

	// Note: On Vercel, a local sqlite file is ephemeral; point STORE_URL at
	// Turso, Postgres, Redis or Cloudflare KV.
	application, err := app.New(context.Background(), cfg, log)
	if err != nil {
		panic(err)
	}
	mux = application.Router()
}

// Handler is the entrypoint for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	mux.ServeHTTP(w, r)
}
