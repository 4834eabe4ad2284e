package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

type Option func(*Repository)

// Repository writes archive files below basePath/container.
type Repository struct {
	basePath  string
	container string
	logger    *zap.Logger
}

// WithContainer names the sub-directory of the base path files are written to.
func WithContainer(container string) Option {
	return func(r *Repository) {
		r.container = container
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

func New(basePath string, opts ...Option) *Repository {
	r := &Repository{
		basePath: basePath,
		logger:   zap.NewNop(),
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns the file a key is written to.
func (r *Repository) Path(key string) (string, error) {
	root := filepath.Join(r.basePath, r.container)
	full := filepath.Join(root, filepath.FromSlash(key))
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("key %q escapes the repository", key)
	}
	return full, nil
}

func (r *Repository) Write(ctx context.Context, key string, reader io.Reader) error {
	fullPath, err := r.Path(key)
	if err != nil {
		return err
	}
	r.logger.Info("writing file", zap.String("path", fullPath))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}

	// write to a sibling first so readers never observe a partial file
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), "."+filepath.Base(fullPath)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), fullPath)
}
