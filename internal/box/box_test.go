package box_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbiter-oj/arbiter/internal/box"
)

func TestBoxLifecycle(t *testing.T) {
	root := t.TempDir()

	b, err := box.New(root, "subm-1")
	require.NoError(t, err)
	require.DirExists(t, b.Path())

	require.NoError(t, b.AddFile("main.py", []byte("print(1)")))
	assert.True(t, b.HasFile("main.py"))
	assert.False(t, b.HasFile("main.out"))

	body, err := b.GetFile("main.py")
	require.NoError(t, err)
	assert.Equal(t, "print(1)", string(body))

	require.NoError(t, b.Close())
	_, err = os.Stat(b.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestBoxReplacesLeftover(t *testing.T) {
	root := t.TempDir()

	b1, err := box.New(root, "subm-1")
	require.NoError(t, err)
	require.NoError(t, b1.AddFile("stale", []byte("old")))

	// a second box for the same id starts empty
	b2, err := box.New(root, "subm-1")
	require.NoError(t, err)
	assert.False(t, b2.HasFile("stale"))
}

func TestBoxSanitizesID(t *testing.T) {
	root := t.TempDir()

	b, err := box.New(root, "a/../../b")
	require.NoError(t, err)
	assert.NotContains(t, b.Path(), "..")

	_, err = box.New(root, "../..")
	require.Error(t, err)
}
