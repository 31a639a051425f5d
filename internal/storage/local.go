package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"clipforge/internal/logging"
	"clipforge/internal/services"
)

// LocalGateway stores assets under a base directory on the local filesystem.
type LocalGateway struct {
	basePath string
	signer   *Signer
	logger   *slog.Logger
}

// NewLocalGateway creates a filesystem-backed gateway rooted at basePath.
// signSecret may be empty, in which case SignedURL returns plain file URIs.
func NewLocalGateway(basePath, signSecret string, logger *slog.Logger) *LocalGateway {
	if logger == nil {
		logger = logging.NewNop()
	}
	var signer *Signer
	if signSecret != "" {
		signer = NewSigner(signSecret)
	}
	return &LocalGateway{
		basePath: basePath,
		signer:   signer,
		logger:   logging.NewComponentLogger(logger, "storage"),
	}
}

func (g *LocalGateway) Name() string { return "local" }

// Save copies the file at localPath to basePath/key and returns a file:// URI.
// Parent directories are created as needed. The copy goes through a temp file
// so readers never observe a partially written asset.
func (g *LocalGateway) Save(ctx context.Context, localPath, key string) (string, error) {
	dest := filepath.Join(g.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "storage", "save", "create asset directory", err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, "storage", "save", fmt.Sprintf("open source %s", localPath), err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".clipforge-*")
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "storage", "save", "create temp file", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", services.Wrap(services.ErrTransient, "storage", "save", "copy asset", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", services.Wrap(services.ErrTransient, "storage", "save", "flush asset", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return "", services.Wrap(services.ErrTransient, "storage", "save", "finalize asset", err)
	}

	uri := "file://" + dest
	g.logger.InfoContext(ctx, "asset stored",
		logging.String("backend", "local"),
		logging.String("key", key),
		logging.String("uri", uri))
	return uri, nil
}

// Get copies the stored asset out to localPath.
func (g *LocalGateway) Get(_ context.Context, uri, localPath string) error {
	src, err := os.Open(localPathFromURI(uri))
	if err != nil {
		return services.Wrap(services.ErrNotFound, "storage", "get", fmt.Sprintf("open asset %s", uri), err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "storage", "get", "create destination directory", err)
	}
	dest, err := os.Create(localPath)
	if err != nil {
		return services.Wrap(services.ErrTransient, "storage", "get", fmt.Sprintf("create %s", localPath), err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, src); err != nil {
		return services.Wrap(services.ErrTransient, "storage", "get", "copy asset", err)
	}
	return dest.Close()
}

// List walks basePath/prefix and returns the stored keys, slash-separated
// and relative to the base path. A missing prefix lists as empty.
func (g *LocalGateway) List(_ context.Context, prefix string) ([]string, error) {
	root := filepath.Join(g.basePath, filepath.FromSlash(prefix))
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}

	keys := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(g.basePath, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "storage", "list", fmt.Sprintf("walk %s", prefix), err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (g *LocalGateway) Stat(_ context.Context, uri string) (Metadata, error) {
	path := localPathFromURI(uri)
	stat, err := os.Stat(path)
	if err != nil {
		return Metadata{}, services.Wrap(services.ErrNotFound, "storage", "stat", fmt.Sprintf("stat %s", path), err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return Metadata{
		Size:        stat.Size(),
		ContentType: contentType,
		ModTime:     stat.ModTime(),
	}, nil
}

func (g *LocalGateway) Exists(_ context.Context, uri string) (bool, error) {
	_, err := os.Stat(localPathFromURI(uri))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (g *LocalGateway) Delete(ctx context.Context, uri string) error {
	path := localPathFromURI(uri)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return services.Wrap(services.ErrTransient, "storage", "delete", fmt.Sprintf("remove %s", path), err)
	}
	g.logger.InfoContext(ctx, "asset deleted", logging.String("uri", uri))
	return nil
}

// SignedURL produces a download path with an HMAC token appended. Without a
// signing secret the plain URI is returned unchanged.
func (g *LocalGateway) SignedURL(_ context.Context, uri string, ttl time.Duration) (string, error) {
	if g.signer == nil {
		return uri, nil
	}
	rel, err := filepath.Rel(g.basePath, localPathFromURI(uri))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "storage", "sign", "asset outside base path", err)
	}
	token := g.signer.Sign(filepath.ToSlash(rel), time.Now().Add(ttl))
	return fmt.Sprintf("/assets/%s?token=%s", filepath.ToSlash(rel), url.QueryEscape(token)), nil
}

func localPathFromURI(uri string) string {
	return strings.TrimPrefix(uri, "file://")
}
