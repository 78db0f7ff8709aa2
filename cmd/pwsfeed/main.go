package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/pws-feed-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/pws-feed-service/internal/adapter/kafka"
	mqttadapter "github.com/couchcryptid/pws-feed-service/internal/adapter/mqtt"
	"github.com/couchcryptid/pws-feed-service/internal/config"
	"github.com/couchcryptid/pws-feed-service/internal/observability"
	"github.com/couchcryptid/pws-feed-service/internal/pipeline"
	"github.com/couchcryptid/pws-feed-service/internal/wustream"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader, closeSink, err := newSink(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start sink", "sink", cfg.Sink, "error", err)
		os.Exit(1)
	}

	client := wustream.NewClient(wustream.Options{
		Host:             cfg.Host,
		Port:             cfg.Port,
		DialTimeout:      cfg.DialTimeout,
		IOTimeout:        cfg.IOTimeout,
		DecodeBufferSize: cfg.DecodeBufferSize,
	}, metrics, logger)

	p := pipeline.New(client, loader, pipeline.Options{
		Query: wustream.Query{
			Endpoint:    cfg.Endpoint,
			StationID:   cfg.StationID,
			APIKey:      cfg.APIKey,
			ArrayMarker: cfg.ArrayMarker,
			MaxData:     cfg.MaxRecords,
		},
		Interval:    cfg.PollInterval,
		DedupWindow: cfg.DedupWindow,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start poll loop.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	closeSink()

	logger.Info("shutdown complete")
}

// newSink builds the configured BatchLoader and the func that releases it.
func newSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.BatchLoader, func(), error) {
	switch cfg.Sink {
	case config.SinkMQTT:
		pub := mqttadapter.NewPublisher(cfg, logger)
		if err := pub.Connect(ctx); err != nil {
			pub.Disconnect()
			return nil, nil, err
		}
		return pub, pub.Disconnect, nil
	default:
		w := kafkaadapter.NewWriter(cfg, logger)
		closeWriter := func() {
			if err := w.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}
		return w, closeWriter, nil
	}
}
