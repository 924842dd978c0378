package blobstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_CreateGet(t *testing.T) {
	s := NewStore()

	key := s.Create([]byte("pixels"), "image/png")
	require.True(t, IsBlobKey(key))

	data, ctype, err := s.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("pixels"), data)
	require.Equal(t, "image/png", ctype)
	require.Equal(t, 1, s.Len())
}

func TestStore_UniqueKeys(t *testing.T) {
	s := NewStore()

	k1 := s.Create([]byte("a"), "image/png")
	k2 := s.Create([]byte("b"), "image/png")
	require.NotEqual(t, k1, k2)
	require.Equal(t, 2, s.Len())
}

func TestStore_RevokeIdempotent(t *testing.T) {
	s := NewStore()

	key := s.Create([]byte("pixels"), "image/png")
	s.Revoke(key)
	s.Revoke(key) // повторный отзыв - no-op

	_, _, err := s.Get(key)
	require.ErrorIs(t, err, ErrBlobNotFound)
	require.Zero(t, s.Len())
}

func TestStore_Close(t *testing.T) {
	s := NewStore()
	s.Create([]byte("a"), "image/png")
	s.Create([]byte("b"), "image/jpeg")

	s.Close()
	require.Zero(t, s.Len())
}
