// Package storage persists rendered assets and hands out download URLs.
// Two backends are available: a local filesystem gateway and an rclone
// gateway that shells out to the rclone CLI for remote object stores.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"clipforge/internal/config"
)

// Metadata describes a stored asset.
type Metadata struct {
	Size        int64
	ContentType string
	ModTime     time.Time
}

// Gateway stores rendered assets under string keys and resolves them to URIs.
type Gateway interface {
	// Name identifies the backend ("local" or "rclone").
	Name() string
	// Save persists the file at localPath under key and returns its URI.
	Save(ctx context.Context, localPath, key string) (string, error)
	// Get downloads the asset to localPath.
	Get(ctx context.Context, uri, localPath string) error
	// List returns the keys stored under prefix, in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	// Stat reports metadata for a stored asset.
	Stat(ctx context.Context, uri string) (Metadata, error)
	// Exists reports whether the asset is present.
	Exists(ctx context.Context, uri string) (bool, error)
	// Delete removes the asset.
	Delete(ctx context.Context, uri string) error
	// SignedURL returns a time-limited download URL for the asset.
	SignedURL(ctx context.Context, uri string, ttl time.Duration) (string, error)
}

// NewGateway builds the gateway selected by cfg.Storage.Backend.
func NewGateway(cfg *config.Config, logger *slog.Logger) (Gateway, error) {
	switch cfg.Storage.Backend {
	case "local":
		return NewLocalGateway(cfg.Paths.OutputDir, cfg.Storage.SignSecret, logger), nil
	case "rclone":
		return NewRcloneGateway(RcloneConfig{
			Remote: cfg.Storage.RcloneRemote,
			Binary: cfg.Storage.RcloneBinary,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
