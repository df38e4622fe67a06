package main

import (
	"flag"
	"net/http"

	"rosteriq-backend/lib/configutil"
	"rosteriq-backend/lib/serviceutil"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Config struct {
	Port   int          `json:"port"`
	Roster RosterConfig `json:"roster"`
}

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	InitTelemetry(ctx, *verbose)

	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	err = InitRoster(ctx, r, cfg.Roster, *verbose)
	if err != nil {
		serviceutil.Fatal("init roster", err)
	}

	err = serviceutil.StartHttpServer(ctx, cfg.Port, r)
	if err != nil {
		serviceutil.Fatal("http server", err)
	}
}
