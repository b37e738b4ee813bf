// Package app connects the backing services and assembles the domain
// services shared by the HTTP server and the CLI.
package app

import (
	"context"
	"fmt"
	"net"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/matchbase/marketplace/internal/accounts"
	"github.com/matchbase/marketplace/internal/config"
	"github.com/matchbase/marketplace/internal/database"
	"github.com/matchbase/marketplace/internal/engagement"
	"github.com/matchbase/marketplace/internal/gate"
	"github.com/matchbase/marketplace/internal/listings"
	"github.com/matchbase/marketplace/internal/notify"
	"github.com/matchbase/marketplace/internal/oplog"
	"github.com/matchbase/marketplace/internal/projection"
	"github.com/matchbase/marketplace/internal/reconcile"
	"github.com/matchbase/marketplace/internal/revocation"
	"github.com/matchbase/marketplace/internal/search"
	"github.com/matchbase/marketplace/internal/storage"
	"github.com/matchbase/marketplace/internal/store"
	"github.com/matchbase/marketplace/internal/view"
	"github.com/matchbase/marketplace/pkg/logger"
)

const mongoAttempts = 5

// App holds the connected backends and the services built on them.
type App struct {
	Config *config.Config

	Mongo  *mongo.Client
	Redis  *redis.Client
	Meili  *search.Meili
	Store  *store.MongoStore
	Files  accounts.Files
	Mailer *notify.Mailer

	Log        *oplog.Log
	Writer     *projection.Writer
	Gate       *gate.Gate
	Views      *view.Materializer
	Engagement *engagement.Service
	Listings   *listings.Service
	Accounts   *accounts.Service
	Reconciler *reconcile.Reconciler
	Revocation *revocation.Store
}

// New connects MongoDB (required), Redis, Meilisearch and MinIO (optional)
// and wires the domain services. Close releases the connections.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	client, err := database.ConnectMongoRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, mongoAttempts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	a.Mongo = client
	a.Store = store.NewMongoStore(client.Database(cfg.MongoDB.Database))
	if err := a.Store.EnsureIndexes(ctx); err != nil {
		logger.Warnf("mongo: ensure indexes: %v", err)
	}

	if cfg.Redis.Host != "" {
		addr := net.JoinHostPort(cfg.Redis.Host, cfg.Redis.Port)
		rc, err := database.ConnectRedis(ctx, addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warnf("redis unavailable at %s, revocation and shared rate limits disabled: %v", addr, err)
		} else {
			a.Redis = rc
			logger.Infof("connected to Redis at %s", addr)
		}
	}
	a.Revocation = revocation.New(a.Redis)

	a.Meili = search.NewMeili(cfg.Meili.URL, cfg.Meili.APIKey, cfg.Meili.IndexPrefix, search.DefaultSettings())

	if cfg.MinIO.Endpoint != "" {
		files, err := storage.NewMinIOStorage(ctx, storage.Config{
			Endpoint:  cfg.MinIO.Endpoint,
			AccessKey: cfg.MinIO.AccessKey,
			SecretKey: cfg.MinIO.SecretKey,
			UseSSL:    cfg.MinIO.UseSSL,
			Bucket:    cfg.MinIO.Bucket,
		})
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("connect minio: %w", err)
		}
		a.Files = files
	} else {
		logger.Warnf("MINIO_ENDPOINT not set; icons are kept in memory")
		a.Files = storage.NewMemoryStorage()
	}

	a.Mailer = notify.NewMailer(notify.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		FromName: cfg.Mail.FromName,
	}, a.Store)
	var notifier engagement.Notifier
	if a.Mailer.IsConfigured() {
		notifier = a.Mailer
	} else {
		logger.Infof("mail not configured; engagement notifications are off")
	}

	m := cfg.Marketplace
	a.Log = oplog.New(a.Store)
	a.Writer = projection.NewWriter(a.Store, a.Meili, projection.DefaultSchema(), a.Log)
	a.Gate = gate.New(a.Store, m.DemoAccountID)
	a.Engagement = engagement.NewService(a.Store, notifier, m.Location())
	a.Views = view.New(a.Store, a.Engagement)
	a.Listings = listings.NewService(a.Store, a.Meili, a.Writer, a.Gate, a.Views, a.Engagement, m.BatchPageSize)
	a.Accounts = accounts.NewService(accounts.Deps{
		Store:      a.Store,
		Search:     a.Meili,
		Writer:     a.Writer,
		Gate:       a.Gate,
		Views:      a.Views,
		Engagement: a.Engagement,
		Files:      a.Files,
		Revoker:    a.Revocation,
		RevokeTTL:  m.RevocationTTL,
	})
	a.Reconciler = reconcile.New(a.Store, a.Meili, m.ReconcileWorkers)
	return a, nil
}

// Close stops the search health monitor and disconnects the clients.
func (a *App) Close(ctx context.Context) {
	if a.Meili != nil {
		a.Meili.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Mongo != nil {
		if err := a.Mongo.Disconnect(ctx); err != nil {
			logger.Warnf("mongo disconnect: %v", err)
		}
	}
}
