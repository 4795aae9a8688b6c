// Package storage keeps uploaded prescriptions and medicine images.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store saves an upload and returns the key recorded on the owning row
type Store interface {
	Save(ctx context.Context, kind, originalName string, r io.Reader, size int64, contentType string) (string, error)
}

// ErrUnsupportedType rejects uploads whose extension is not whitelisted
var ErrUnsupportedType = errors.New("unsupported file type")

var allowedExt = map[string]bool{
	".pdf": true, ".png": true, ".jpg": true, ".jpeg": true, ".webp": true, ".gif": true,
}

// ObjectKey builds "<kind>/<uuid><ext>"; the client filename only contributes
// a whitelisted extension.
func ObjectKey(kind, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExt[ext] {
		return "", fmt.Errorf("%w %q", ErrUnsupportedType, ext)
	}
	return path.Join(kind, uuid.NewString()+ext), nil
}

// Local stores files below a directory on disk
type Local struct {
	Dir string
}

func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &Local{Dir: dir}, nil
}

func (l *Local) Save(_ context.Context, kind, originalName string, r io.Reader, _ int64, _ string) (string, error) {
	key, err := ObjectKey(kind, originalName)
	if err != nil {
		return "", err
	}
	full := filepath.Join(l.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(full), err)
	}
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", full, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", full, err)
	}
	return key, nil
}
