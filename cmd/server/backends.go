package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tamoykinden/Final-project-auto-purch/internal/cart"
	"github.com/tamoykinden/Final-project-auto-purch/internal/catalog"
	"github.com/tamoykinden/Final-project-auto-purch/internal/config"
	"github.com/tamoykinden/Final-project-auto-purch/internal/notify"
	"github.com/tamoykinden/Final-project-auto-purch/internal/order"
	"github.com/tamoykinden/Final-project-auto-purch/internal/storage/postgres"
)

// lockPoolSize bounds the checkouts and cart writes in flight per instance.
const lockPoolSize = 20

// backends holds the stores selected by the configuration.
type backends struct {
	catalog   catalog.Store
	orders    order.Repository
	outbox    notify.Outbox
	carts     cart.Repository
	cache     cart.Cache
	locker    cart.Locker
	publisher notify.Publisher

	db      *sql.DB
	mongo   *mongo.Client
	redis   *redis.Client
	closers []func() error
}

func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{}
	opened := false
	defer func() {
		if !opened {
			b.close()
		}
	}()

	switch cfg.StorageBackend {
	case config.BackendPostgres:
		db, err := postgres.Connect(&cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		b.db = db
		b.closers = append(b.closers, db.Close)

		if err := postgres.RunMigrations(db, cfg.Postgres.MigrationsDirPath); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Msg("database migrations completed")

		b.catalog = catalog.NewPostgresStore(db)
		b.orders = order.NewPostgresRepository(db)
		b.outbox = notify.NewPostgresOutbox(db)

		// Buyer locks pin a connection each, so they get a pool of their own.
		lockDB, err := postgres.Connect(&cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("failed to open lock pool: %w", err)
		}
		lockDB.SetMaxOpenConns(lockPoolSize)
		lockDB.SetMaxIdleConns(lockPoolSize)
		b.closers = append(b.closers, lockDB.Close)
		b.locker = postgres.NewAdvisoryLocker(lockDB, "cart")
	default:
		b.catalog = catalog.NewMemoryStore()
		b.orders = order.NewMemoryRepository()
		b.outbox = notify.NewMemoryOutbox()
		b.locker = cart.NewLocalLocker()
		log.Warn().Msg("using in-memory storage, data is lost on restart")
	}

	switch cfg.CartBackend {
	case config.BackendMongo:
		db, err := cart.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		b.mongo = db.Client()
		b.closers = append(b.closers, func() error { return b.mongo.Disconnect(context.Background()) })

		b.carts = cart.NewMongoRepository(db)
		if err := cart.CreateIndexes(ctx, b.carts); err != nil {
			return nil, err
		}
	default:
		b.carts = cart.NewMemoryRepository()
	}

	if cfg.RedisAddr != "" {
		b.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		b.closers = append(b.closers, b.redis.Close)
		if err := b.redis.Ping(ctx).Err(); err != nil {
			// the cache is optional, reads fall back to the repository
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis is not reachable")
		}
		b.cache = cart.NewRedisCache(b.redis)
	}

	if len(cfg.KafkaBrokers) > 0 {
		b.publisher = notify.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
	} else {
		b.publisher = notify.LogPublisher{}
		log.Warn().Msg("no Kafka brokers configured, events are only logged")
	}
	b.closers = append(b.closers, b.publisher.Close)

	opened = true
	return b, nil
}

// ping checks the stores the API cannot work without. The Redis cache is not one of them.
func (b *backends) ping(ctx context.Context) error {
	if b.db != nil {
		if err := b.db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if b.mongo != nil {
		if err := b.mongo.Ping(ctx, nil); err != nil {
			return fmt.Errorf("mongo: %w", err)
		}
	}
	return nil
}

// close releases resources in reverse order of opening.
func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			log.Warn().Err(err).Msg("failed to close backend")
		}
	}
	b.closers = nil
}
