package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/gitterbridge/internal/config"
	"github.com/alfredjeanlab/gitterbridge/internal/events"
	"github.com/alfredjeanlab/gitterbridge/internal/parser"
	"github.com/alfredjeanlab/gitterbridge/internal/server"
	"github.com/alfredjeanlab/gitterbridge/internal/store"
	"github.com/alfredjeanlab/gitterbridge/internal/store/memory"
	"github.com/alfredjeanlab/gitterbridge/internal/store/postgres"
	gbsync "github.com/alfredjeanlab/gitterbridge/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the gitterbridge gRPC and HTTP servers",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create a client connection.
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		logger := parser.NewLogger(os.Stderr, cfg.LogLevel)
		slog.SetDefault(logger)

		st, err := openStore(cfg, logger)
		if err != nil {
			return err
		}

		// Embedded NATS overrides any configured URL.
		natsURL := cfg.NATSURL
		var embedded *events.EmbeddedServer
		if cfg.EmbeddedNATS {
			embedded, err = events.StartEmbedded("127.0.0.1", cfg.NATSPort)
			if err != nil {
				st.Close()
				return err
			}
			natsURL = embedded.ClientURL()
			logger.Info("embedded NATS started", "url", natsURL)
		}

		// Create event publishers.
		var pubs events.MultiPublisher
		if natsURL != "" {
			pub, err := events.NewNATSPublisher(natsURL)
			if err != nil {
				logger.Error("failed to connect NATS publisher", "err", err)
			} else {
				pubs = append(pubs, pub)
				logger.Info("NATS events enabled", "nats_url", natsURL)
			}
		}
		if len(cfg.KafkaBrokers) > 0 {
			pub, err := events.NewKafkaPublisher(cfg.KafkaBrokers)
			if err != nil {
				logger.Error("failed to create Kafka publisher", "err", err)
			} else {
				pubs = append(pubs, pub)
				logger.Info("Kafka events enabled", "brokers", cfg.KafkaBrokers)
			}
		}
		var publisher events.Publisher
		if len(pubs) > 0 {
			publisher = pubs
		} else {
			logger.Info("external events disabled (GITTER_NATS_URL and GITTER_KAFKA_BROKERS not set)")
		}

		p, err := parser.New(cfg.ServiceID, cfg.LogLevel, parser.WithLogger(logger))
		if err != nil {
			st.Close()
			return err
		}

		// Create server components.
		srv := server.NewNormalizerServer(p, st, publisher, logger)
		grpcServer := server.NewGRPCServer(srv, cfg.AuthToken)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			if publisher != nil {
				publisher.Close()
			}
			st.Close()
			return err
		}

		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: srv.NewHTTPHandler(cfg.AuthToken),
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		scheduler := startScheduler(cfg, st, logger)

		// Relay raw events arriving on the bus.
		var relayCancel context.CancelFunc
		if natsURL != "" {
			sub, err := events.NewNATSSubscriber(natsURL)
			if err != nil {
				logger.Error("failed to create relay subscriber", "err", err)
			} else {
				sub.WithQueue("gitterbridge-relay")
				var relayCtx context.Context
				relayCtx, relayCancel = context.WithCancel(context.Background())
				go func() {
					if err := srv.Relay().StartSubscriber(relayCtx, sub, cfg.Subject); err != nil {
						logger.Error("relay subscriber error", "err", err)
					}
					sub.Close()
				}()
			}
		}

		logger.Info("gitterbridge server started",
			"service_id", cfg.ServiceID,
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
		)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		if relayCancel != nil {
			relayCancel()
			logger.Info("relay subscriber stopped")
		}

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if publisher != nil {
			if err := publisher.Close(); err != nil {
				logger.Error("error closing publisher", "err", err)
			}
		}
		if embedded != nil {
			embedded.Shutdown()
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}

func openStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("using in-memory store (GITTER_DATABASE_URL not set)")
		return memory.New(), nil
	}
	st, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	logger.Info("using postgres store")
	return st, nil
}

// startScheduler starts periodic exports when an interval and at least one
// destination are configured. It returns nil otherwise.
func startScheduler(cfg *config.Config, st store.Store, logger *slog.Logger) *gbsync.Scheduler {
	if cfg.SyncInterval <= 0 {
		return nil
	}

	var dests []gbsync.Destination
	if cfg.SyncS3Bucket != "" {
		s3Dest, err := gbsync.NewS3Destination(
			context.Background(),
			cfg.SyncS3Bucket,
			cfg.SyncS3Key,
			cfg.SyncS3Region,
			cfg.SyncS3Endpoint,
		)
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
		}
	}
	if cfg.SyncGitRepo != "" {
		dests = append(dests, gbsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch))
		logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}
	if len(dests) == 0 {
		return nil
	}

	scheduler := gbsync.NewScheduler(st, dests, cfg.SyncInterval, logger)
	scheduler.Start()
	logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
	return scheduler
}
