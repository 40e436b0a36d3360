// Package local_test tests the local filesystem blob store.
package local_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/gsc-crawl-errors/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "exports", "nested")
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file.txt")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})

	t.Run("BaseDirNotWritable", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("root ignores directory permissions")
		}
		tempDir := t.TempDir()
		// #nosec G302 -- directory permissions adjusted intentionally for test coverage.
		require.NoError(t, os.Chmod(tempDir, 0o500))
		t.Cleanup(func() {
			// #nosec G302 -- reverting permissions to allow cleanup.
			_ = os.Chmod(tempDir, 0o700)
		})

		_, err := local.New(local.Config{BaseDir: tempDir})
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	tempDir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: tempDir})
	require.NoError(t, err)

	t.Run("ValidPut", func(t *testing.T) {
		data := []byte("pageUrl,platform\n")
		uri, err := store.PutObject(context.Background(), "notFound_20180102T030405Z.csv", "text/csv", bytes.NewReader(data))
		require.NoError(t, err)

		target := filepath.Join(tempDir, "notFound_20180102T030405Z.csv")
		assert.Equal(t, "file://"+target, uri)
		// #nosec G304 -- test reads from the controlled temp directory.
		got, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("Overwrites", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "same.csv", "text/csv", bytes.NewReader([]byte("long content")))
		require.NoError(t, err)
		_, err = store.PutObject(context.Background(), "same.csv", "text/csv", bytes.NewReader([]byte("short")))
		require.NoError(t, err)
		// #nosec G304 -- test reads from the controlled temp directory.
		got, err := os.ReadFile(filepath.Join(tempDir, "same.csv"))
		require.NoError(t, err)
		assert.Equal(t, "short", string(got))
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "", "text/csv", bytes.NewReader([]byte("data")))
		assert.Error(t, err)
	})

	t.Run("PathTraversal", func(t *testing.T) {
		_, err := store.PutObject(context.Background(), "../escape.csv", "text/csv", bytes.NewReader([]byte("data")))
		assert.Error(t, err)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := store.PutObject(ctx, "late.csv", "text/csv", bytes.NewReader([]byte("data")))
		assert.Error(t, err)
	})
}

func TestPutObjectWorkingDirectory(t *testing.T) {
	for _, base := range []string{"", ".", "./"} {
		t.Run("BaseDir="+base, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)

			store, err := local.New(local.Config{BaseDir: base})
			require.NoError(t, err)

			uri, err := store.PutObject(context.Background(), "notFound_20180102T030405Z.csv", "text/csv", bytes.NewReader([]byte("pageUrl\n")))
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(uri, "/notFound_20180102T030405Z.csv"))

			// #nosec G304 -- test reads from the controlled temp directory.
			got, err := os.ReadFile(filepath.Join(dir, "notFound_20180102T030405Z.csv"))
			require.NoError(t, err)
			assert.Equal(t, "pageUrl\n", string(got))

			_, err = store.PutObject(context.Background(), "../escape.csv", "text/csv", bytes.NewReader([]byte("x")))
			assert.Error(t, err)
		})
	}
}
