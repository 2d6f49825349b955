package storage

import (
	"context"
	"fmt"

	"github.com/objstream/objstream-go/internal/config"
	"github.com/objstream/objstream-go/internal/credentials"
	"github.com/objstream/objstream-go/internal/storage/local"
	"github.com/objstream/objstream-go/internal/storage/mongodb"
	"github.com/objstream/objstream-go/internal/storage/postgres"
	"github.com/objstream/objstream-go/internal/storage/s3"
)

// NewBackend builds the backend a mount describes.
func NewBackend(ctx context.Context, m config.Mount) (Backend, error) {
	switch m.Backend {
	case "s3":
		creds, ok, err := credentials.Resolve("")
		if err != nil {
			return nil, fmt.Errorf("mount %q: %w", m.Prefix, err)
		}
		opts := s3.Options{
			Region:    m.S3.Region,
			Bucket:    m.S3.Bucket,
			Endpoint:  m.S3.Endpoint,
			PathStyle: m.S3.PathStyle,
		}
		if ok {
			opts.Credentials = creds
		}
		return s3.New(ctx, opts)

	case "postgres":
		return postgres.New(m.Postgres.DSN, m.Postgres.Table)

	case "mongodb":
		return mongodb.New(ctx, m.MongoDB.URI, m.MongoDB.Database, m.MongoDB.Collection)

	case "local":
		return local.New(m.Local.Root)

	default:
		return nil, fmt.Errorf("mount %q: unknown backend %q", m.Prefix, m.Backend)
	}
}

// NewRegistryFromConfig builds a registry with every mount in cfg
// registered. A failing mount closes the ones already built.
func NewRegistryFromConfig(ctx context.Context, cfg config.Config) (*Registry, error) {
	r := NewRegistry()
	for _, m := range cfg.Mounts {
		b, err := NewBackend(ctx, m)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.Register(m.Prefix, b)
	}
	return r, nil
}
