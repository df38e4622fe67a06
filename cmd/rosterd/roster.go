package main

import (
	"context"
	"time"

	"rosteriq-backend/lib/browser"
	"rosteriq-backend/lib/scrapers/netline/core"
	"rosteriq-backend/lib/serviceutil"
	"rosteriq-backend/lib/sqliteutil"
	"rosteriq-backend/services/rosterservice"
	"rosteriq-backend/services/rosterservice/db"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
)

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

type RosterConfig struct {
	Database string `json:"database"`
	// yaml file with extra portals or url overrides
	Registry string `json:"registry"`
	// bearer token callers must present, empty disables the check
	AccessToken string `json:"access_token"`
	// check portal reachability before launching chrome
	Preflight bool                  `json:"preflight"`
	Chrome    browser.ChromeOptions `json:"chrome"`
	// optional, roster change emails are disabled without it
	Smtp *SmtpConfig `json:"smtp"`

	CacheTTLMinutes int `json:"cache_ttl_minutes"`
	// rosters not refreshed for this many days are deleted
	RetentionDays int  `json:"retention_days"`
	AlwaysText    bool `json:"always_text"`
}

func InitRoster(ctx context.Context, r chi.Router, cfg RosterConfig, verbose bool) error {
	database, err := sqliteutil.OpenDB(db.Schema, cfg.Database)
	if err != nil {
		return err
	}

	registry := core.NewRegistry()
	if cfg.Registry != "" {
		registry, err = core.LoadRegistry(cfg.Registry)
		if err != nil {
			return err
		}
	}

	pipeline := rosterservice.NewPipeline(
		browser.NewChromeLauncher(cfg.Chrome),
		registry,
		rosterservice.PipelineOptions{AlwaysText: cfg.AlwaysText},
	)
	if cfg.Preflight {
		preflight, err := core.NewPreflight(preflightOutput(verbose))
		if err != nil {
			return err
		}
		pipeline.Preflight = &preflight
	}

	var notifier rosterservice.Notifier
	if cfg.Smtp != nil {
		notifier = rosterservice.NewEmailNotifier(rosterservice.SmtpConfig{
			Server:       cfg.Smtp.Server,
			Port:         cfg.Smtp.Port,
			EmailAddress: cfg.Smtp.EmailAddress,
			Password:     cfg.Smtp.Password,
		})
	}

	service := rosterservice.NewService(database, pipeline, notifier, rosterservice.Options{
		CacheTTL: time.Duration(cfg.CacheTTLMinutes) * time.Minute,
	})

	retention := cfg.RetentionDays
	if retention <= 0 {
		retention = 90
	}
	service.Cache().StartPruning(ctx, time.Hour*6, time.Duration(retention)*time.Hour*24)

	otelInterceptor, err := serviceutil.NewConnectOtelInterceptor()
	if err != nil {
		return err
	}
	r.Handle(rosterservice.NewHandler(
		service,
		connect.WithInterceptors(
			otelInterceptor,
			serviceutil.VerifyAccessTokenInterceptor(cfg.AccessToken),
		),
	))
	return nil
}
