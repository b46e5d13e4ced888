package driver

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietEntry() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestTempScopeRemovesFiles(t *testing.T) {
	dir := t.TempDir()
	id := uuid.New()
	s := newTempScope(id, dir, quietEntry())

	a, err := s.create("cc", ".s")
	require.NoError(t, err)
	b, err := s.create("cc", ".o")
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
	assert.NotEqual(t, a.Name(), b.Name())

	for _, f := range []*os.File{a, b} {
		base := filepath.Base(f.Name())
		assert.True(t, strings.HasPrefix(base, "cc"+id.String()), base)
		assert.Equal(t, dir, filepath.Dir(f.Name()))
	}
	assert.True(t, strings.HasSuffix(a.Name(), ".s"))
	assert.True(t, strings.HasSuffix(b.Name(), ".o"))

	kept := filepath.Join(dir, "result")
	require.NoError(t, os.WriteFile(kept, nil, 0o644))
	s.track(kept)
	s.keep(kept)
	s.track(filepath.Join(dir, "never-created"))

	require.NoError(t, s.Close())
	assert.NoFileExists(t, a.Name())
	assert.NoFileExists(t, b.Name())
	assert.FileExists(t, kept)
}

func TestTempDirSearch(t *testing.T) {
	usable := t.TempDir()
	t.Setenv("TMPDIR", filepath.Join(usable, "does-not-exist"))
	t.Setenv("TMP", usable)
	t.Setenv("TEMP", "")

	s := newTempScope(uuid.New(), "", quietEntry())
	assert.Equal(t, usable, s.tempDir())

	configured := newTempScope(uuid.New(), "/configured", quietEntry())
	assert.Equal(t, "/configured", configured.tempDir())
}
