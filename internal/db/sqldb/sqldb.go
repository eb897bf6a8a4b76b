package sqldb

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Database struct {
	db  *gorm.DB
	log *logrus.Logger
}

type Config struct {
	Driver   string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	// Path is the SQLite file (or memory URI); ignored by the other drivers.
	Path  string
	Debug bool
}

func dialector(cfg Config) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverMySQL, "":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.Username,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.Database,
		)
		return mysql.Open(dsn), nil
	case DriverPostgres:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.Host,
			cfg.Port,
			cfg.Username,
			cfg.Password,
			cfg.Database,
		)
		return postgres.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(cfg.Path), nil
	default:
		return nil, errors.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// NewDatabase opens the relational store selected by cfg.Driver.
func NewDatabase(cfg Config, log *logrus.Logger) (*Database, error) {
	log.WithFields(logrus.Fields{
		"driver":   cfg.Driver,
		"host":     cfg.Host,
		"port":     cfg.Port,
		"database": cfg.Database,
	}).Info("Connecting to database")

	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	logMode := logger.Silent
	if cfg.Debug {
		logMode = logger.Info
	}

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logMode),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(d, gormConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to access sql database")
	}

	if cfg.Driver == DriverSQLite {
		// SQLite allows a single writer; an in-memory database also lives only as long as its connection.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(20)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Database{
		db:  db,
		log: log,
	}, nil
}

func (db *Database) Close() error {
	sqlDB, err := db.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to access sql database")
	}
	return sqlDB.Close()
}

func (db *Database) GetDB() *gorm.DB {
	return db.db
}

// Migrate creates or updates the transactions table and its indexes.
func (db *Database) Migrate() error {
	db.log.Info("Migrating database tables")

	if err := db.db.AutoMigrate(&Transaction{}); err != nil {
		return errors.Wrap(err, "failed to migrate transactions table")
	}

	return nil
}
