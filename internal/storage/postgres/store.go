// Package postgres реализует docstore.Gateway поверх PostgreSQL: каждая
// коллекция хранится строками таблицы documents с телом в JSONB.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"

	"github.com/ejjahanieklu/ehn/internal/docstore"
)

const defaultConnTimeout = 5 * time.Second

var errNotInitialized = errors.New("postgres store is not initialized")

// pool ограничивает database/sql пул. Каждая операция держит одно
// подключение, поэтому лимит открытых подключений задаёт потолок
// параллельных операций.
var pool = struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
	maxIdleTime time.Duration
}{
	maxOpen:     25,
	maxIdle:     10,
	maxLifetime: 30 * time.Minute,
	maxIdleTime: 5 * time.Minute,
}

// Store выдаёт по одному подключению из пула на логическую операцию.
type Store struct {
	db     *sql.DB
	logger *log.Entry
}

// Open разбирает dsn, открывает пул и проверяет доступность базы.
func Open(ctx context.Context, dsn string) (*Store, error) {
	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	db := stdlib.OpenDB(*connCfg)
	db.SetMaxOpenConns(pool.maxOpen)
	db.SetMaxIdleConns(pool.maxIdle)
	db.SetConnMaxLifetime(pool.maxLifetime)
	db.SetConnMaxIdleTime(pool.maxIdleTime)

	store := &Store{
		db: db,
		logger: log.WithFields(log.Fields{
			"component": "postgres-store",
			"database":  connCfg.Database,
		}),
	}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return store, nil
}

// DB нужен миграциям и тестам.
func (s *Store) DB() *sql.DB {
	return s.db
}

// WithConnection берёт подключение из пула на время op и возвращает его
// при любом исходе.
func (s *Store) WithConnection(ctx context.Context, op docstore.Operation) error {
	if s == nil || s.db == nil {
		return errNotInitialized
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire postgres connection: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			s.logger.WithError(cerr).Warn("failed to release postgres connection")
		}
	}()

	return op(ctx, database{conn: conn})
}

func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errNotInitialized
	}
	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

func (s *Store) Close(context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type database struct {
	conn *sql.Conn
}

func (d database) Collection(name string) docstore.Collection {
	return &collection{conn: d.conn, name: name}
}

var _ docstore.Gateway = (*Store)(nil)
