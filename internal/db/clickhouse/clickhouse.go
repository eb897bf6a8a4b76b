package clickhouse

import (
	"context"
	"net"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Database struct {
	conn clickhouse.Conn
	log  *logrus.Logger
}

type Config struct {
	Hosts    []string
	Database string
	Username string
	Password string
	Debug    bool
}

func NewDatabase(cfg Config, log *logrus.Logger) (*Database, error) {
	log.WithFields(logrus.Fields{
		"hosts":    cfg.Hosts,
		"database": cfg.Database,
	}).Info("Connecting to ClickHouse")

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Hosts,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialContext: func(ctx context.Context, addr string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", addr)
		},
		Debug: cfg.Debug,
		Debugf: func(format string, v ...any) {
			log.Debugf(format, v...)
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout:      10 * time.Second,
		MaxOpenConns:     5,
		MaxIdleConns:     5,
		ConnMaxLifetime:  10 * time.Minute,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{
				{Name: "transaction-webhook-service", Version: "0.1"},
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open clickhouse connection")
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, errors.Wrap(err, "failed to ping clickhouse")
	}

	return &Database{
		conn: conn,
		log:  log,
	}, nil
}

func (db *Database) Close() error {
	return db.conn.Close()
}
