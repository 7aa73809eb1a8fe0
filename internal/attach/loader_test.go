package attach

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFS(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/docs/a.txt", []byte("alpha"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/docs/b.pdf", []byte("%PDF-1.4"), 0o644))
	require.NoError(t, fs.MkdirAll("/docs/sub", 0o755))
	return fs
}

func TestLoad(t *testing.T) {
	l := NewLoader(newFS(t))

	f, err := l.Load(" /docs/a.txt ")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", f.Name)
	assert.Equal(t, []byte("alpha"), f.Data)
}

func TestLoadErrors(t *testing.T) {
	l := NewLoader(newFS(t))

	_, err := l.Load("/docs/missing.txt")
	assert.Error(t, err)

	_, err = l.Load("/docs/sub")
	assert.True(t, errors.Is(err, ErrNotRegular))

	_, err = l.Load("   ")
	assert.Error(t, err)
}

func TestLoadAllKeepsOrder(t *testing.T) {
	l := NewLoader(newFS(t))

	files, err := l.LoadAll(SplitPaths("/docs/b.pdf, /docs/a.txt"))
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "b.pdf", files[0].Name)
	assert.Equal(t, "a.txt", files[1].Name)
}

func TestLoadAllFailsWhole(t *testing.T) {
	l := NewLoader(newFS(t))

	files, err := l.LoadAll([]string{"/docs/a.txt", "/nope"})
	assert.Error(t, err)
	assert.Nil(t, files)
}

func TestSplitPaths(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", "d"}, SplitPaths(" a ,b c,, d ,"))
	assert.Nil(t, SplitPaths(""))
	assert.Nil(t, SplitPaths(" , "))
}
