package backend

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestBackend(t *testing.T) *Backend {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "qbuf-backend")
	b, err := Open(dir, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Destroy() })
	return b
}

func TestBackendPutAndScan(t *testing.T) {
	b := openTestBackend(t)

	pairs := []KVPair{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("c"), Value: []byte("3")},
	}
	require.NoError(t, b.Put(pairs))

	got, err := b.Scan([]byte("a"), []byte("z"), 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, []byte("a"), got[0].Key)
	require.Equal(t, []byte("c"), got[2].Key)
}

func TestBackendScanOffsetLimit(t *testing.T) {
	b := openTestBackend(t)

	pairs := []KVPair{
		{Key: []byte("k1"), Value: []byte("v1")},
		{Key: []byte("k2"), Value: []byte("v2")},
		{Key: []byte("k3"), Value: []byte("v3")},
		{Key: []byte("k4"), Value: []byte("v4")},
	}
	require.NoError(t, b.Put(pairs))

	got, err := b.Scan([]byte("k1"), []byte("k5"), 1, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, []byte("k2"), got[0].Key)
	require.Equal(t, []byte("k3"), got[1].Key)
}

func TestBackendDeleteRange(t *testing.T) {
	b := openTestBackend(t)

	require.NoError(t, b.Put([]KVPair{
		{Key: []byte("x1"), Value: []byte("v")},
		{Key: []byte("x2"), Value: []byte("v")},
		{Key: []byte("y1"), Value: []byte("v")},
	}))

	require.NoError(t, b.DeleteRange([]byte("x1"), []byte("y1")))

	got, err := b.Scan([]byte("x1"), []byte("z"), 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, []byte("y1"), got[0].Key)
}

func TestBackendCount(t *testing.T) {
	b := openTestBackend(t)
	require.NoError(t, b.Put([]KVPair{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	}))

	n, err := b.Count([]byte("a"), []byte("z"))
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestBackendOperationsAfterCloseFail(t *testing.T) {
	b := openTestBackend(t)
	require.NoError(t, b.Close())

	_, err := b.Scan(nil, nil, 0, 0)
	require.ErrorIs(t, err, ErrClosed)

	err = b.Put([]KVPair{{Key: []byte("a"), Value: []byte("1")}})
	require.ErrorIs(t, err, ErrClosed)
}
