package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/tamoykinden/Final-project-auto-purch/internal/cart"
	"github.com/tamoykinden/Final-project-auto-purch/internal/checkout"
	"github.com/tamoykinden/Final-project-auto-purch/internal/config"
	"github.com/tamoykinden/Final-project-auto-purch/internal/health"
	h "github.com/tamoykinden/Final-project-auto-purch/internal/http"
	"github.com/tamoykinden/Final-project-auto-purch/internal/metrics"
	"github.com/tamoykinden/Final-project-auto-purch/internal/notify"
	"github.com/tamoykinden/Final-project-auto-purch/internal/status"
	"github.com/tamoykinden/Final-project-auto-purch/internal/supplier"
	"github.com/tamoykinden/Final-project-auto-purch/pkg/logger"
)

func main() {
	envFile := flag.String("env", ".env", "optional env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(logger.Options{Service: cfg.ServiceName, Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
	log.Info().Msg("server exited")
}

func run(ctx context.Context, cfg *config.Config) error {
	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	for _, s := range cfg.Suppliers {
		if _, err := b.catalog.UpsertSupplier(ctx, s); err != nil {
			return fmt.Errorf("register supplier %s: %w", s.ID, err)
		}
	}

	m := metrics.New("server")
	dispatcher := notify.NewOutboxDispatcher(b.outbox, b.orders)

	carts := cart.NewService(b.carts, b.cache, b.catalog, cart.WithLocker(b.locker))
	checkoutService := checkout.NewService(b.catalog, carts, b.orders, dispatcher, m)
	tracker := status.NewTracker(b.orders, b.catalog, dispatcher, m)
	suppliers := supplier.NewService(b.catalog, b.orders)

	router := h.NewRouter(h.Services{
		Catalog:        b.catalog,
		Carts:          carts,
		Checkout:       checkoutService,
		Orders:         b.orders,
		Tracker:        tracker,
		Suppliers:      suppliers,
		Metrics:        m,
		Ready:          b.ping,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "http.server"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}
	healthServer := health.NewServer(cfg.ServiceName, b.ping, 5*time.Second)

	poller := notify.NewOutboxPoller(b.outbox, b.publisher, cfg.OutboxPollInterval, m).
		WithRecovery(dispatcher, cfg.OutboxRecoveryInterval)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("port", cfg.HTTPPort).Msg("HTTP API starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info().Str("port", cfg.GRPCPort).Msg("gRPC health starting")
		if err := healthServer.Serve(gctx, grpcLis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		poller.Run(gctx)
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		healthServer.Stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
