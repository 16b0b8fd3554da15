package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"

	"github.com/sarvottam-bhagat/docu-ai-processor/internal/config"
)

type Dependencies struct {
	DB          *sql.DB
	NSQProducer *nsq.Producer
}

// Bootstrap brings up the shared infrastructure: the session database
// (when the Postgres store is selected), its migrations, and the NSQ
// producer for result events.
func Bootstrap(cfg *config.Config) (*Dependencies, error) {
	deps := &Dependencies{}
	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second

	if cfg.SessionStore == "postgres" {
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)

		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %w", err)
		}

		for i := 0; i < cfg.BootstrapRetryAttempts; i++ {
			if err := db.Ping(); err == nil {
				break
			}
			slog.Warn("failed to ping db, retrying...", "attempt", i+1)
			time.Sleep(retryDelay)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping db: %w", err)
		}

		driver, err := postgres.WithInstance(db, &postgres.Config{})
		if err != nil {
			return nil, fmt.Errorf("migration driver error: %w", err)
		}
		m, err := migrate.NewWithDatabaseInstance(cfg.MigrationPath, "postgres", driver)
		if err != nil {
			return nil, fmt.Errorf("migration instance error: %w", err)
		}
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			return nil, fmt.Errorf("migration up error: %w", err)
		}
		slog.Info("migrations applied")

		deps.DB = db
	}

	nsqCfg := nsq.NewConfig()
	producer, err := nsq.NewProducer(cfg.NSQDHost, nsqCfg)
	if err != nil {
		return nil, fmt.Errorf("nsq producer error: %w", err)
	}
	deps.NSQProducer = producer

	createTopics(cfg.NSQDHTTP)

	return deps, nil
}

// createTopics pre-creates NSQ topics over nsqd's HTTP api. NSQ makes
// topics lazily on first publish, but consumers querying lookupd 404
// until then.
func createTopics(nsqdHTTP string) {
	create := func(topic string) {
		url := fmt.Sprintf("http://%s/topic/create?topic=%s", nsqdHTTP, topic)
		resp, err := http.Post(url, "application/json", nil)
		if err != nil {
			slog.Warn("failed to create NSQ topic", "topic", topic, "error", err)
			return
		}
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close NSQ topic creation response body", "error", closeErr)
		}
	}

	go func() {
		time.Sleep(2 * time.Second)
		create(config.TopicExtractionResult)
	}()
}
