// Package mongo реализует docstore.Gateway поверх MongoDB.
//
// Поддерживаются два режима: per-call открывает и закрывает клиента на каждую
// логическую операцию, session держит общий пул и выдаёт отдельную сессию
// на операцию.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ejjahanieklu/ehn/internal/docstore"
)

// Mode определяет, как выдаются подключения.
type Mode string

const (
	ModePerCall Mode = "per-call"
	ModeSession Mode = "session"
)

const (
	defaultServerSelectionTimeout = 5 * time.Second
	defaultMaxPoolSize            = 50
)

// Config описывает подключение к MongoDB.
type Config struct {
	URI                    string
	Database               string
	Mode                   Mode
	ServerSelectionTimeout time.Duration
	MaxPoolSize            uint64
}

// ParseMode разбирает режим подключения; пустая строка означает session.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeSession:
		return ModeSession, nil
	case ModePerCall:
		return ModePerCall, nil
	default:
		return "", fmt.Errorf("unsupported mongo mode %q (use per-call|session)", raw)
	}
}

var errGatewayClosed = errors.New("mongo gateway is closed")

// Gateway выдаёт подключения к MongoDB.
type Gateway struct {
	cfg Config
	// client заполнен только в режиме session; Close обнуляет его
	// конкурентно с WithConnection и Ping.
	client atomic.Pointer[mongodriver.Client]
	logger *log.Entry
}

// Open проверяет конфигурацию и, в режиме session, подключает общий клиент.
func Open(ctx context.Context, cfg Config) (*Gateway, error) {
	if strings.TrimSpace(cfg.URI) == "" {
		return nil, errors.New("mongo uri is required")
	}
	mode, err := ParseMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}
	cfg.Mode = mode
	if cfg.Database == "" {
		cfg.Database = docstore.DefaultDatabase
	}
	if cfg.ServerSelectionTimeout <= 0 {
		cfg.ServerSelectionTimeout = defaultServerSelectionTimeout
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = defaultMaxPoolSize
	}

	g := &Gateway{
		cfg: cfg,
		logger: log.WithFields(log.Fields{
			"component": "mongo-gateway",
			"database":  cfg.Database,
			"mode":      cfg.Mode,
		}),
	}

	if cfg.Mode == ModeSession {
		client, err := g.connect(ctx)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.WithoutCancel(ctx))
			return nil, fmt.Errorf("ping mongo: %w", err)
		}
		g.client.Store(client)
	}

	g.logger.Info("mongo gateway ready")
	return g, nil
}

// Mode возвращает режим gateway.
func (g *Gateway) Mode() Mode {
	return g.cfg.Mode
}

// WithConnection выполняет op в рамках одного подключения (per-call)
// или одной сессии (session). Ресурс освобождается при любом исходе op.
func (g *Gateway) WithConnection(ctx context.Context, op docstore.Operation) error {
	if g.cfg.Mode == ModePerCall {
		client, err := g.connect(ctx)
		if err != nil {
			return err
		}
		defer g.disconnect(ctx, client)
		return op(ctx, database{db: client.Database(g.cfg.Database)})
	}

	client := g.client.Load()
	if client == nil {
		return errGatewayClosed
	}
	db := client.Database(g.cfg.Database)
	return client.UseSession(ctx, func(sc mongodriver.SessionContext) error {
		return op(sc, database{db: db})
	})
}

// Ping проверяет доступность MongoDB.
func (g *Gateway) Ping(ctx context.Context) error {
	if g.cfg.Mode == ModePerCall {
		client, err := g.connect(ctx)
		if err != nil {
			return err
		}
		defer g.disconnect(ctx, client)
		return client.Ping(ctx, readpref.Primary())
	}
	client := g.client.Load()
	if client == nil {
		return errGatewayClosed
	}
	return client.Ping(ctx, readpref.Primary())
}

// Close отключает общий клиент.
func (g *Gateway) Close(ctx context.Context) error {
	if g == nil {
		return nil
	}
	client := g.client.Swap(nil)
	if client == nil {
		return nil
	}
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}

func (g *Gateway) connect(ctx context.Context) (*mongodriver.Client, error) {
	opts := options.Client().
		ApplyURI(g.cfg.URI).
		SetServerSelectionTimeout(g.cfg.ServerSelectionTimeout).
		SetMaxPoolSize(g.cfg.MaxPoolSize)

	client, err := mongodriver.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return client, nil
}

func (g *Gateway) disconnect(ctx context.Context, client *mongodriver.Client) {
	if err := client.Disconnect(context.WithoutCancel(ctx)); err != nil {
		g.logger.WithError(err).Warn("failed to disconnect mongo client")
	}
}

var _ docstore.Gateway = (*Gateway)(nil)
