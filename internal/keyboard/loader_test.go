package keyboard

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeAtomic replaces path by rename so watchers never see a partial file.
func writeAtomic(t *testing.T, path, content string) {
	t.Helper()
	tmp := filepath.Join(filepath.Dir(path), ".tmp-"+filepath.Base(path))
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o600))
	require.NoError(t, os.Rename(tmp, path))
}

func TestLoaderKeepsLastGood(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hamster.yaml")
	writeAtomic(t, path, "keyboard:\n  useKeyboardType: alphabetic\n")

	l := NewLoader(path)
	assert.Equal(t, Default(), l.Current())

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "alphabetic", cfg.Keyboard.UseKeyboardType)

	writeAtomic(t, path, "keyboards:\n  - rows: []\n")
	cfg, err = l.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
	assert.Equal(t, "alphabetic", cfg.Keyboard.UseKeyboardType)
	assert.Same(t, cfg, l.Current())
}

func TestLoaderWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hamster.yaml")
	writeAtomic(t, path, "keyboard:\n  useKeyboardType: chinese\n")

	l := NewLoader(path)
	_, err := l.Load()
	require.NoError(t, err)

	changed := make(chan *Configuration, 4)
	l.OnChange(func(c *Configuration) { changed <- c })
	require.NoError(t, l.Watch())
	defer l.Close()

	writeAtomic(t, path, "keyboard:\n  useKeyboardType: custom(仓颉)\n")

	select {
	case cfg := <-changed:
		assert.Equal(t, "仓颉", cfg.ActiveLayoutName())
		assert.Same(t, cfg, l.Current())
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	writeAtomic(t, path, "swipe: fast\n")

	select {
	case err := <-l.Errors():
		assert.True(t, errors.Is(err, ErrParse))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload error")
	}
	assert.Equal(t, "仓颉", l.Current().ActiveLayoutName())
}

func TestLoaderCloseWithoutWatch(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "hamster.yaml"))
	assert.NoError(t, l.Close())
}
