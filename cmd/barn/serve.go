package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/barn.report/internal/api"
	"github.com/banshee-data/barn.report/internal/ingest"
	"github.com/banshee-data/barn.report/internal/pipeline"
	"github.com/banshee-data/barn.report/internal/version"
)

func runServe(ctx context.Context, opts options) error {
	if opts.listen == "" {
		return errors.New("listen address is required")
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	st, err := openStores(ctx, cfg, opts.dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	log.Printf("starting %s", version.Current())
	p := pipeline.New(cfg, st.history, st.accumulators)

	if broker := cfg.GetMQTTBroker(); broker != "" {
		client, err := ingest.Connect(broker, cfg.GetMQTTClientID())
		if err != nil {
			return err
		}
		sub := ingest.NewSubscriber(client, cfg.GetMQTTTopic(), p)
		if err := sub.Start(ctx); err != nil {
			client.Disconnect(250)
			return err
		}
		defer func() {
			sub.Stop()
			stats := sub.Stats()
			log.Printf("mqtt ingest stopped: %d accepted, %d rejected, %d failed", stats.Accepted, stats.Rejected, stats.Failed)
		}()
	}

	mux := api.NewServer(p, st.history, cfg, opts.units).ServeMux()
	st.history.AttachAdminRoutes(mux)

	server := &http.Server{
		Addr:              opts.listen,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("listening on %s", opts.listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		wg.Wait()
		return err
	case <-ctx.Done():
	}

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	wg.Wait()
	log.Printf("Graceful shutdown complete")
	return nil
}
