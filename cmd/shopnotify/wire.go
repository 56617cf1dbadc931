package main

import (
	"fmt"

	"github.com/nhle/shopnotify/internal/api"
	"github.com/nhle/shopnotify/internal/credential"
	"github.com/nhle/shopnotify/internal/inbox"
	"github.com/nhle/shopnotify/internal/realtime"
	"github.com/nhle/shopnotify/internal/store"
)

// services holds everything built from the loaded config.
type services struct {
	tokens *credential.KeyringTokenSource
	client *api.Client
	cache  *store.SQLiteStore
}

func newServices() (*services, error) {
	tokens := credential.NewKeyringTokenSource()
	client := api.NewClient(cfg.API.BaseURL, tokens,
		api.WithTimeout(cfg.RequestTimeout()),
		api.WithLogger(logger.Logger),
	)

	s := &services{tokens: tokens, client: client}

	if cfg.Cache.Path != "" {
		cache, err := store.NewSQLiteStore(cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// newInbox builds the inbox with a push connection factory.
func (s *services) newInbox() *inbox.Inbox {
	rtCfg := realtime.Config{
		BaseURL:           cfg.API.BaseURL,
		HeartbeatInterval: cfg.HeartbeatInterval(),
		BackoffBase:       cfg.BackoffBase(),
		BackoffMax:        cfg.BackoffMax(),
		TicketTimeout:     cfg.TicketTimeout(),
	}

	connect := func(h realtime.Handler) inbox.Connector {
		return realtime.New(rtCfg, realtime.Deps{
			Tokens:  s.tokens,
			Tickets: s.client,
			Logger:  logger.Logger,
		}, h)
	}

	opts := []inbox.Option{
		inbox.WithLogger(logger.Logger),
		inbox.WithPageSize(cfg.Inbox.PageSize),
	}
	if s.cache != nil {
		opts = append(opts, inbox.WithCache(s.cache))
	}
	return inbox.New(s.client, connect, opts...)
}

func (s *services) Close() {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			logger.Warn("closing cache", "error", err)
		}
	}
}
