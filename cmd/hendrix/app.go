package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"gofalre.io/hendrix"
	"gofalre.io/hendrix/api"
	"gofalre.io/hendrix/config"
	"gofalre.io/hendrix/driver"
	"gofalre.io/hendrix/storage"
)

type application struct {
	svc    hendrix.Service
	cfg    *config.Config
	logger *zap.Logger

	closers   []func() error
	closeOnce sync.Once
	closeErr  error
}

func newApplication(ctx context.Context, v *viper.Viper) (*application, error) {
	// 1. 載入設定
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	a := &application{cfg: cfg, logger: logger}

	// 2. 開啟儲存
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStore)

	// 3. 付款事件 (可選)
	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = nats.Connect(cfg.NATS.URL, nats.Name("hendrix"))
		if err != nil {
			logger.Warn("Payment event feed unavailable", zap.String("url", cfg.NATS.URL), zap.Error(err))
			nc = nil
		} else {
			a.closers = append(a.closers, func() error { nc.Close(); return nil })
		}
	}

	client := api.NewClient(cfg.API.Client(), &http.Client{}, logger)
	svc, err := hendrix.NewService(ctx, hendrix.Options{
		Client:   client,
		Store:    store,
		NatsConn: nc,
		Poller:   cfg.Payment.Poller(),
		Workers:  cfg.NATS.Workers,
	}, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.svc = svc
	return a, nil
}

// Close shuts the service down before the connections it uses.
func (a *application) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		if a.svc != nil {
			errs = append(errs, a.svc.Close())
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			errs = append(errs, a.closers[i]())
		}
		_ = a.logger.Sync()
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Store, func() error, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return storage.NewMemory(), func() error { return nil }, nil

	case config.DriverRedis:
		client, err := driver.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewRedis(client, cfg.Redis.Prefix), client.Close, nil

	case config.DriverPostgres:
		pool, err := driver.ConnectSQL(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewPostgres(pool, driver.NewTransactionManager(pool, logger), cfg.Postgres.Namespace)
		if err = store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, func() error { pool.Close(); return nil }, nil

	case config.DriverBadger:
		db, err := driver.OpenBadger(cfg.Storage.BadgerPath, logger)
		if err != nil {
			return nil, nil, err
		}
		return storage.NewBadger(db), db.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
