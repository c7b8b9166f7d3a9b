package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Wordite/tablecrm-t/internal/catalog"
	"github.com/Wordite/tablecrm-t/internal/form"
	"github.com/Wordite/tablecrm-t/internal/handler"
	"github.com/Wordite/tablecrm-t/internal/session"
	"github.com/Wordite/tablecrm-t/internal/tablecrm"
	"github.com/Wordite/tablecrm-t/internal/transport"
	"github.com/Wordite/tablecrm-t/pkg/config"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogger(cfg)

	log.Info().Msg("Order form service starting...")
	log.Debug().Interface("config_loaded", cfg).Msg("Configuration loaded")

	client := tablecrm.NewClient(cfg.TableCRM.BaseURL, cfg.TableCRM.Timeout)
	cache := catalog.NewCache()
	cached := catalog.NewCached(client, cache, cfg.TableCRM.CatalogTTL, cfg.TableCRM.ProductTTL)
	sessions := session.NewRegistry()

	svc := form.NewService(cached, client, sessions, form.Options{
		MinPhoneLength:  cfg.Form.MinPhoneLength,
		MinSearchLength: cfg.Form.MinSearchLength,
		ProductLimit:    cfg.TableCRM.ProductLimit,
	})
	router := transport.NewRouter(handler.NewFormHandler(svc))

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.TableCRM.Timeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go runJanitor(janitorCtx, sessions, cache, cfg.App.SessionIdleTimeout)

	go func() {
		log.Info().Str("port", cfg.App.Port).Str("tablecrm", cfg.TableCRM.BaseURL).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")
	stopJanitor()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.App.LogFormat == config.LogFormatConsole {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", "order-form").Logger()
}

// runJanitor drops idle sessions and expired catalog entries once a minute.
func runJanitor(ctx context.Context, sessions *session.Registry, cache *catalog.Cache, maxIdle time.Duration) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := sessions.Sweep(maxIdle)
			purged := cache.Purge()
			if removed > 0 || purged > 0 {
				log.Debug().
					Int("sessions_removed", removed).
					Int("cache_entries_purged", purged).
					Int("sessions_active", sessions.Len()).
					Msg("janitor: sweep done")
			}
		}
	}
}
