// Command hellopet-stub serves the local Hello Pet stand-in so the browser
// suite can be pointed at it with HELLOPET_BASE_URL.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kuitang/hellopet-e2e/internal/config"
	"github.com/kuitang/hellopet-e2e/internal/obs"
	"github.com/kuitang/hellopet-e2e/internal/stubapp"
)

func main() {
	addr := flag.String("addr", "", "listen address (overrides HELLOPET_STUB_ADDR)")
	flag.Parse()

	obs.Init()
	log := obs.Pkg("hellopet-stub")

	cfg, err := config.LoadStubConfig(*addr)
	if err != nil {
		log.Error("config_invalid", "error", err)
		os.Exit(2)
	}

	app, err := stubapp.New(stubapp.Options{
		SessionDuration: cfg.SessionDuration,
		LoginLimit:      cfg.LoginLimit,
	})
	if err != nil {
		log.Error("stub_init_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("stub_listening", "url", "http://"+cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("stub_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown_failed", "error", err)
	}
}
