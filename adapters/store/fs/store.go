package storefs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/salmanaghayev/text-csv-or-excel/export"
)

const defaultPerm fs.FileMode = 0o644

// Store writes rendered sheets into a directory. Keys are slash separated
// paths below Root; writes replace existing files atomically.
type Store struct {
	Root string
	Perm fs.FileMode
	Now  func() time.Time
}

// NewStore creates a store rooted at root.
func NewStore(root string) *Store {
	return &Store{Root: root, Perm: defaultPerm, Now: time.Now}
}

// Put writes r to the file named by key.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, meta export.ArtifactMeta) (export.ArtifactRef, error) {
	pathOnDisk, err := s.target(ctx, key)
	if err != nil {
		return export.ArtifactRef{}, err
	}
	if r == nil {
		return export.ArtifactRef{}, export.NewError(export.KindValidation, "artifact content is required", nil)
	}

	dir := filepath.Dir(pathOnDisk)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return export.ArtifactRef{}, persistence("create directory", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return export.ArtifactRef{}, persistence("create temp file in", dir, err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, r)
	if err != nil {
		return export.ArtifactRef{}, persistence("write", key, err)
	}
	if err := tmp.Chmod(s.perm()); err != nil {
		return export.ArtifactRef{}, persistence("chmod", key, err)
	}
	if err := tmp.Sync(); err != nil {
		return export.ArtifactRef{}, persistence("sync", key, err)
	}
	if err := tmp.Close(); err != nil {
		return export.ArtifactRef{}, persistence("close", key, err)
	}
	if err := ctx.Err(); err != nil {
		return export.ArtifactRef{}, err
	}
	if err := os.Rename(tmp.Name(), pathOnDisk); err != nil {
		return export.ArtifactRef{}, persistence("rename", key, err)
	}

	meta.Size = size
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now()
	}
	if meta.ContentType == "" {
		meta.ContentType = contentType(pathOnDisk)
	}
	if meta.Filename == "" {
		meta.Filename = filepath.Base(pathOnDisk)
	}
	return export.ArtifactRef{Key: key, Meta: meta}, nil
}

// Open reads the file named by key. Metadata comes from the file itself.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, export.ArtifactMeta, error) {
	pathOnDisk, err := s.target(ctx, key)
	if err != nil {
		return nil, export.ArtifactMeta{}, err
	}

	file, err := os.Open(pathOnDisk)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, export.ArtifactMeta{}, export.NewError(export.KindNotFound, fmt.Sprintf("artifact %q not found", key), err)
		}
		return nil, export.ArtifactMeta{}, persistence("open", key, err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, export.ArtifactMeta{}, persistence("stat", key, err)
	}

	return file, export.ArtifactMeta{
		ContentType: contentType(pathOnDisk),
		Size:        info.Size(),
		Filename:    info.Name(),
		CreatedAt:   info.ModTime(),
	}, nil
}

// Delete removes the file named by key. Missing files are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	pathOnDisk, err := s.target(ctx, key)
	if err != nil {
		return err
	}
	if err := os.Remove(pathOnDisk); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return persistence("delete", key, err)
	}
	return nil
}

// Path returns where key is stored on disk.
func (s *Store) Path(key string) (string, error) {
	return s.resolvePath(key)
}

func (s *Store) target(ctx context.Context, key string) (string, error) {
	if s == nil {
		return "", export.NewError(export.KindInternal, "store is nil", nil)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.Root == "" {
		return "", export.NewError(export.KindValidation, "store root is required", nil)
	}
	if key == "" {
		return "", export.NewError(export.KindValidation, "artifact key is required", nil)
	}
	return s.resolvePath(key)
}

func (s *Store) resolvePath(key string) (string, error) {
	clean := path.Clean("/" + key)
	rel := strings.TrimPrefix(clean, "/")
	if rel == "" || rel == "." {
		return "", export.NewError(export.KindValidation, "invalid artifact key", nil)
	}

	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", export.NewError(export.KindValidation, fmt.Sprintf("invalid store root %q", s.Root), err)
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", export.NewError(export.KindValidation, "artifact key escapes root", nil)
	}
	return target, nil
}

func (s *Store) perm() fs.FileMode {
	if s.Perm == 0 {
		return defaultPerm
	}
	return s.Perm
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func contentType(pathOnDisk string) string {
	ext := strings.TrimPrefix(filepath.Ext(pathOnDisk), ".")
	for _, format := range []export.Format{export.FormatCSV, export.FormatJSON, export.FormatNDJSON, export.FormatXLSX, export.FormatSQLite} {
		if format.Extension() == ext {
			return format.ContentType()
		}
	}
	if typ := mime.TypeByExtension("." + ext); typ != "" {
		return typ
	}
	return "application/octet-stream"
}

func persistence(op, target string, err error) error {
	return export.NewError(export.KindPersistence, fmt.Sprintf("%s %q", op, target), err)
}
