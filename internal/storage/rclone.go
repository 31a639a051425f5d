package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"path"
	"sort"
	"strings"
	"time"

	"clipforge/internal/logging"
	"clipforge/internal/services"
)

// RcloneConfig configures the rclone-backed gateway.
type RcloneConfig struct {
	// Remote is the rclone destination prefix, e.g. "s3:my-bucket/clips".
	Remote string
	Binary string
}

// RcloneGateway stores assets on a remote object store via the rclone CLI.
type RcloneGateway struct {
	cfg           RcloneConfig
	logger        *slog.Logger
	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewRcloneGateway creates a gateway that shells out to rclone.
func NewRcloneGateway(cfg RcloneConfig, logger *slog.Logger) *RcloneGateway {
	if cfg.Binary == "" {
		cfg.Binary = "rclone"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RcloneGateway{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "storage"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (g *RcloneGateway) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	g.commandRunner = runner
}

func (g *RcloneGateway) Name() string { return "rclone" }

// Check verifies the rclone binary works and the remote is reachable.
func (g *RcloneGateway) Check(ctx context.Context) error {
	out, err := g.run(ctx, "version")
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "storage", "check", "rclone binary not working", err)
	}
	version := strings.SplitN(string(out), "\n", 2)[0]
	if _, err := g.run(ctx, "lsd", g.remotePath("")); err != nil {
		return services.Wrap(services.ErrConfiguration, "storage", "check",
			fmt.Sprintf("remote %q not accessible", g.cfg.Remote), err)
	}
	g.logger.InfoContext(ctx, "rclone gateway ready",
		logging.String("remote", g.cfg.Remote),
		logging.String("version", version))
	return nil
}

// Save copies the local file to the remote under key and returns an
// rclone:// URI.
func (g *RcloneGateway) Save(ctx context.Context, localPath, key string) (string, error) {
	dest := g.remotePath(key)
	start := time.Now()
	if _, err := g.run(ctx, "copyto", localPath, dest); err != nil {
		return "", services.Wrap(services.ErrTransient, "storage", "save", "rclone copyto", err)
	}
	uri := "rclone://" + dest
	g.logger.InfoContext(ctx, "asset stored",
		logging.String("backend", "rclone"),
		logging.String("key", key),
		logging.Duration("duration", time.Since(start)))
	return uri, nil
}

// Get downloads the remote asset to localPath via rclone copyto.
func (g *RcloneGateway) Get(ctx context.Context, uri, localPath string) error {
	dest := strings.TrimPrefix(uri, "rclone://")
	if _, err := g.run(ctx, "copyto", dest, localPath); err != nil {
		return services.Wrap(services.ErrTransient, "storage", "get", "rclone copyto", err)
	}
	return nil
}

// List returns the keys under prefix via rclone lsjson --recursive.
func (g *RcloneGateway) List(ctx context.Context, prefix string) ([]string, error) {
	out, err := g.run(ctx, "lsjson", "--recursive", g.remotePath(prefix))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "storage", "list", "rclone lsjson", err)
	}
	var entries []struct {
		Path  string `json:"Path"`
		IsDir bool   `json:"IsDir"`
	}
	if err := json.Unmarshal(out, &entries); err != nil {
		return nil, services.Wrap(services.ErrValidation, "storage", "list", "parse rclone lsjson output", err)
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir {
			continue
		}
		key := entry.Path
		if prefix != "" {
			key = path.Join(prefix, entry.Path)
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (g *RcloneGateway) Stat(ctx context.Context, uri string) (Metadata, error) {
	dest := strings.TrimPrefix(uri, "rclone://")
	out, err := g.run(ctx, "size", "--json", dest)
	if err != nil {
		return Metadata{}, services.Wrap(services.ErrNotFound, "storage", "stat", "rclone size", err)
	}
	var size struct {
		Bytes int64 `json:"bytes"`
	}
	if err := json.Unmarshal(out, &size); err != nil {
		return Metadata{}, services.Wrap(services.ErrValidation, "storage", "stat", "parse rclone size output", err)
	}
	return Metadata{Size: size.Bytes, ContentType: "application/octet-stream"}, nil
}

func (g *RcloneGateway) Exists(ctx context.Context, uri string) (bool, error) {
	dest := strings.TrimPrefix(uri, "rclone://")
	if _, err := g.run(ctx, "lsf", dest); err != nil {
		return false, nil
	}
	return true, nil
}

func (g *RcloneGateway) Delete(ctx context.Context, uri string) error {
	dest := strings.TrimPrefix(uri, "rclone://")
	if _, err := g.run(ctx, "deletefile", dest); err != nil {
		return services.Wrap(services.ErrTransient, "storage", "delete", "rclone deletefile", err)
	}
	g.logger.InfoContext(ctx, "asset deleted", logging.String("uri", uri))
	return nil
}

// SignedURL asks the remote for a public link via rclone link.
func (g *RcloneGateway) SignedURL(ctx context.Context, uri string, ttl time.Duration) (string, error) {
	dest := strings.TrimPrefix(uri, "rclone://")
	args := []string{"link", dest}
	if ttl > 0 {
		args = append(args, "--expire", ttl.String())
	}
	out, err := g.run(ctx, args...)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "storage", "sign", "rclone link", err)
	}
	link := strings.TrimSpace(string(out))
	if link == "" {
		return "", services.Wrap(services.ErrValidation, "storage", "sign", "rclone link returned no URL", nil)
	}
	return link, nil
}

func (g *RcloneGateway) remotePath(key string) string {
	if key == "" {
		return g.cfg.Remote
	}
	return g.cfg.Remote + "/" + path.Clean(key)
}

func (g *RcloneGateway) run(ctx context.Context, args ...string) ([]byte, error) {
	if g.commandRunner != nil {
		return g.commandRunner(ctx, g.cfg.Binary, args...)
	}
	cmd := exec.CommandContext(ctx, g.cfg.Binary, args...) //nolint:gosec
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w: %s", g.cfg.Binary, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return out, nil
}
