package conn

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/yanun0323/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultHost         = "localhost"
	defaultPort         = 5432
	defaultSSLMode      = "disable"
	defaultMaxOpenConns = 4
	defaultConnLifetime = 30 * time.Minute
)

// Postgres describes how to reach a PostgreSQL database. The zero value is
// a disabled connection.
type Postgres struct {
	URL          string            `yaml:"url"`
	Host         string            `yaml:"host"`
	Port         int               `yaml:"port"`
	User         string            `yaml:"user"`
	Password     string            `yaml:"password"`
	Database     string            `yaml:"database"`
	SSLMode      string            `yaml:"sslmode"`
	Params       map[string]string `yaml:"params"`
	MaxOpenConns int               `yaml:"max_open_conns"`
	ConnLifetime time.Duration     `yaml:"conn_lifetime"`
}

// Enabled reports whether a database was configured at all.
func (p Postgres) Enabled() bool {
	return p.URL != "" || p.Database != ""
}

// DSN renders the connection string. An explicit URL wins over the fields.
func (p Postgres) DSN() string {
	if p.URL != "" {
		return p.URL
	}

	host, port, sslMode := p.Host, p.Port, p.SSLMode
	if host == "" {
		host = defaultHost
	}
	if port == 0 {
		port = defaultPort
	}
	if sslMode == "" {
		sslMode = defaultSSLMode
	}

	u := &url.URL{Scheme: "postgres", Host: fmt.Sprintf("%s:%d", host, port)}
	switch {
	case p.User != "" && p.Password != "":
		u.User = url.UserPassword(p.User, p.Password)
	case p.User != "":
		u.User = url.User(p.User)
	}
	if p.Database != "" {
		u.Path = "/" + p.Database
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	keys := make([]string, 0, len(p.Params))
	for k := range p.Params {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		query.Set(k, p.Params[k])
	}
	u.RawQuery = query.Encode()

	return u.String()
}

// DB is a pooled PostgreSQL handle.
type DB struct {
	gorm *gorm.DB
}

// OpenPostgres connects, tunes the pool and pings the server once.
func OpenPostgres(ctx context.Context, p Postgres) (*DB, error) {
	db, err := gorm.Open(postgres.Open(p.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres").With("host", p.Host).With("database", p.Database)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql db")
	}

	maxOpen := p.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = defaultMaxOpenConns
	}
	lifetime := p.ConnLifetime
	if lifetime <= 0 {
		lifetime = defaultConnLifetime
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen)
	sqlDB.SetConnMaxLifetime(lifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}

	return &DB{gorm: db}, nil
}

// Gorm returns the underlying gorm handle.
func (d *DB) Gorm() *gorm.DB {
	if d == nil {
		return nil
	}
	return d.gorm
}

// Close releases the pool.
func (d *DB) Close() error {
	if d == nil || d.gorm == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
