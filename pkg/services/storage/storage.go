package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// UploadsPrefix is the public reference prefix of stored files
const UploadsPrefix = "/uploads/"

// ErrInvalidFilename is returned when the client filename cannot be used as a storage key
var ErrInvalidFilename = errors.New("invalid filename")

// UploadError is returned when an uploaded file cannot be persisted
type UploadError struct {
	Name string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("failed to store %s: %v", e.Name, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// NotFoundError is returned when a reference path does not point at a stored file
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Image not found at %s", e.Path)
}

// Store keeps uploaded documents in a flat directory under the public root.
// Files are keyed by their client filename, so a second upload with the same
// name replaces the first.
type Store struct {
	publicDir  string
	uploadDir  string
	stagingDir string
}

// New creates the upload and staging directories under publicDir if needed.
// Staging sits next to uploads so renames stay on one filesystem, but outside
// the served directory.
func New(publicDir string) (*Store, error) {
	abs, err := filepath.Abs(publicDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve public dir: %w", err)
	}
	s := &Store{
		publicDir:  abs,
		uploadDir:  filepath.Join(abs, "uploads"),
		stagingDir: filepath.Join(abs, ".incoming"),
	}
	for _, dir := range []string{s.uploadDir, s.stagingDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return s, nil
}

// UploadDir returns the absolute directory holding stored files
func (s *Store) UploadDir() string {
	return s.uploadDir
}

// StagingDir returns the directory in-flight uploads are written to
func (s *Store) StagingDir() string {
	return s.stagingDir
}

// Save writes r to the upload directory under name and returns its public
// reference path. The file is written and synced in the staging directory
// and only replaces the target once all bytes are on disk.
func (s *Store) Save(name string, r io.Reader) (string, error) {
	key, err := storageKey(name)
	if err != nil {
		return "", err
	}

	pending, err := renameio.NewPendingFile(filepath.Join(s.uploadDir, key),
		renameio.WithTempDir(s.stagingDir),
		renameio.WithPermissions(0o644),
	)
	if err != nil {
		return "", &UploadError{Name: key, Err: err}
	}
	defer pending.Cleanup()

	if _, err := io.Copy(pending, r); err != nil {
		return "", &UploadError{Name: key, Err: err}
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", &UploadError{Name: key, Err: err}
	}

	return UploadsPrefix + key, nil
}

// Resolve maps a reference path such as /uploads/invoice.png onto the file
// it names under the public root.
func (s *Store) Resolve(ref string) (string, error) {
	clean := ref
	if strings.HasPrefix(clean, "/") || strings.HasPrefix(clean, `\`) {
		clean = clean[1:]
	}
	resolved := filepath.Join(s.publicDir, filepath.FromSlash(clean))

	rel, err := filepath.Rel(s.publicDir, resolved)
	if err != nil || within(rel, "..") || within(rel, filepath.Base(s.stagingDir)) {
		return "", &NotFoundError{Path: resolved}
	}

	info, err := os.Stat(resolved)
	if err != nil || info.IsDir() {
		return "", &NotFoundError{Path: resolved}
	}
	return resolved, nil
}

// within reports whether rel is dir or lies beneath it
func within(rel, dir string) bool {
	return rel == dir || strings.HasPrefix(rel, dir+string(filepath.Separator))
}

// storageKey reduces a client filename to its last path element
func storageKey(name string) (string, error) {
	key := path.Base(filepath.ToSlash(name))
	key = filepath.Base(key)
	if key == "" || key == "." || key == ".." || key == "/" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return key, nil
}
