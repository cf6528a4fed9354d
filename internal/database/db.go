package database

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/iliyamo/auth-service/internal/logger"
)

// Options describes a MySQL connection.
type Options struct {
	User     string
	Pass     string
	Host     string
	Port     string
	Name     string
	MaxRetry time.Duration // total time spent retrying the first ping; 0 means a single attempt
}

// DSN renders the driver connection string.
// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
// multiStatements=true -> migration files with several statements
func (o Options) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = o.User
	cfg.Passwd = o.Pass
	cfg.Net = "tcp"
	cfg.Addr = o.Host + ":" + o.Port
	cfg.DBName = o.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// Open connects to MySQL and verifies the connection, retrying the ping with
// exponential back-off while the database comes up.
func Open(ctx context.Context, o Options, log *logger.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Open("mysql", o.DSN())
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = o.MaxRetry
	var policy backoff.BackOff = bo
	if o.MaxRetry <= 0 {
		policy = &backoff.StopBackOff{}
	}

	ping := func() error {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pctx)
	}
	notify := func(err error, delay time.Duration) {
		log.Warn("database not ready", zap.Duration("retry_in", delay), zap.Error(err))
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(policy, ctx), notify); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", o.Host, err)
	}
	return db, nil
}
