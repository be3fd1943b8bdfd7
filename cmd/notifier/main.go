package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tamoykinden/Final-project-auto-purch/internal/config"
	"github.com/tamoykinden/Final-project-auto-purch/internal/notify"
	"github.com/tamoykinden/Final-project-auto-purch/pkg/logger"
)

func main() {
	envFile := flag.String("env", ".env", "optional env file")
	workers := flag.Int("workers", 2, "consumers in the group, at most one per partition does work")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(logger.Options{Service: cfg.ServiceName + "-notifier", Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal().Msg("KAFKA_BROKERS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n := max(*workers, 1)
	consumers := make([]*notify.Consumer, 0, n)
	for i := 0; i < n; i++ {
		consumers = append(consumers, notify.NewConsumer(cfg.KafkaTopic, cfg.KafkaGroupID, notify.LogNotification, cfg.KafkaBrokers...))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range consumers {
		g.Go(func() error {
			c.Run(gctx)
			return nil
		})
	}
	log.Info().Str("topic", cfg.KafkaTopic).Str("group", cfg.KafkaGroupID).Int("workers", len(consumers)).Msg("notifier started")

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("notifier stopped with error")
	}

	for _, c := range consumers {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close consumer")
		}
	}
	log.Info().Msg("notifier stopped")
}
