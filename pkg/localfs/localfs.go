package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Storage writes chat attachments to a local directory and issues URLs under
// the /uploads static prefix, matching how the HTTP layer serves the directory.
type Storage struct {
	dir    string
	logger zerolog.Logger
}

// New creates the upload directory if needed and returns a disk storage.
func New(dir string, logger zerolog.Logger) (*Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload directory must be provided")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	return &Storage{
		dir:    dir,
		logger: logger.With().Str("component", "localfs").Logger(),
	}, nil
}

// Dir returns the backing directory, used by the HTTP layer for static serving.
func (s *Storage) Dir() string {
	return s.dir
}

// Upload writes the payload to disk and returns its public URL.
func (s *Storage) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." {
		return "", fmt.Errorf("invalid file name")
	}

	target := filepath.Join(s.dir, name)
	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug().Str("file", name).Msg("attachment stored on disk")

	return "/uploads/" + name, nil
}
