package storage

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "public"))
	require.NoError(t, err)
	return s
}

func TestSaveRoundTrip(t *testing.T) {
	s := newStore(t)
	content := []byte("\x89PNG\r\n\x1a\nnot really a png")

	ref, err := s.Save("invoice.png", bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/invoice.png", ref)

	resolved, err := s.Resolve(ref)
	require.NoError(t, err)
	got, err := os.ReadFile(resolved)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestSaveOverwritesSameName(t *testing.T) {
	s := newStore(t)

	_, err := s.Save("soa.jpg", strings.NewReader("first"))
	require.NoError(t, err)
	ref, err := s.Save("soa.jpg", strings.NewReader("second"))
	require.NoError(t, err)

	resolved, err := s.Resolve(ref)
	require.NoError(t, err)
	got, err := os.ReadFile(resolved)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestSaveStripsDirectories(t *testing.T) {
	s := newStore(t)

	ref, err := s.Save("../../etc/statement.png", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/statement.png", ref)
	assert.FileExists(t, filepath.Join(s.UploadDir(), "statement.png"))
}

func TestSaveInvalidName(t *testing.T) {
	s := newStore(t)

	for _, name := range []string{"", ".", "..", "/"} {
		_, err := s.Save(name, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidFilename, "name %q", name)
	}
}

func TestSaveReadFailureLeavesNoFile(t *testing.T) {
	s := newStore(t)

	_, err := s.Save("broken.png", iotest.ErrReader(errors.New("connection reset")))

	var uploadErr *UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, "broken.png", uploadErr.Name)
	assert.ErrorContains(t, err, "connection reset")

	for _, dir := range []string{s.UploadDir(), s.StagingDir()} {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, dir)
	}
}

func TestSaveFailureKeepsPreviousUpload(t *testing.T) {
	s := newStore(t)
	_, err := s.Save("soa.png", strings.NewReader("good"))
	require.NoError(t, err)

	_, err = s.Save("soa.png", io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(errors.New("client went away"))))
	require.Error(t, err)

	got, err := os.ReadFile(filepath.Join(s.UploadDir(), "soa.png"))
	require.NoError(t, err)
	assert.Equal(t, "good", string(got))
}

// dirWatcher records the upload and staging dirs while Save is still reading
type dirWatcher struct {
	t        *testing.T
	store    *Store
	uploads  []os.DirEntry
	staging  []os.DirEntry
	consumed bool
}

func (d *dirWatcher) Read(p []byte) (int, error) {
	if d.consumed {
		return 0, io.EOF
	}
	var err error
	d.uploads, err = os.ReadDir(d.store.UploadDir())
	require.NoError(d.t, err)
	d.staging, err = os.ReadDir(d.store.StagingDir())
	require.NoError(d.t, err)
	d.consumed = true
	return copy(p, "data"), nil
}

func TestSaveStagesOutsideUploadDir(t *testing.T) {
	s := newStore(t)
	w := &dirWatcher{t: t, store: s}

	_, err := s.Save("invoice.png", w)
	require.NoError(t, err)

	assert.Empty(t, w.uploads)
	assert.Len(t, w.staging, 1)
	assert.False(t, strings.HasPrefix(s.StagingDir(), s.UploadDir()+string(filepath.Separator)))

	info, err := os.Stat(filepath.Join(s.UploadDir(), "invoice.png"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm()&0o644)
}

func TestResolveNotFound(t *testing.T) {
	s := newStore(t)

	for _, ref := range []string{"/uploads/missing.png", "/uploads", "/../outside.png", "/.incoming", "/.incoming/x.png"} {
		_, err := s.Resolve(ref)
		var notFound *NotFoundError
		require.ErrorAs(t, err, &notFound, "ref %q", ref)
		assert.True(t, strings.HasPrefix(err.Error(), "Image not found at "))
	}
}

func TestResolveWithoutLeadingSlash(t *testing.T) {
	s := newStore(t)
	_, err := s.Save("a.png", strings.NewReader("x"))
	require.NoError(t, err)

	resolved, err := s.Resolve("uploads/a.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.UploadDir(), "a.png"), resolved)
}
