// Package store opens the record store selected by a types.Config.
package store

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/multirow/internal/boltstore"
	"github.com/mesh-intelligence/multirow/internal/mongostore"
	"github.com/mesh-intelligence/multirow/internal/sqlstore"
	"github.com/mesh-intelligence/multirow/pkg/types"
)

// Open validates cfg and opens the configured backend for the types in reg.
func Open(ctx context.Context, cfg types.Config, reg types.Registry) (types.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("store config: %w", err)
	}

	var (
		s   types.Store
		err error
	)
	switch cfg.Backend {
	case types.BackendSQLite, types.BackendMySQL, types.BackendPostgres:
		s, err = openSQL(ctx, cfg, reg)
	case types.BackendBolt:
		s, err = openBolt(cfg, reg)
	case types.BackendMongo:
		s, err = openMongo(ctx, cfg, reg)
	default:
		err = fmt.Errorf("store config: %w: %q", types.ErrBackendUnknown, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openSQL(ctx context.Context, cfg types.Config, reg types.Registry) (types.Store, error) {
	s, err := sqlstore.Open(ctx, cfg, reg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openBolt(cfg types.Config, reg types.Registry) (types.Store, error) {
	s, err := boltstore.Open(cfg, reg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openMongo(ctx context.Context, cfg types.Config, reg types.Registry) (types.Store, error) {
	s, err := mongostore.Open(ctx, cfg, reg)
	if err != nil {
		return nil, err
	}
	return s, nil
}
