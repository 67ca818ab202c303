package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhotoPath(t *testing.T) {
	assert.Equal(t, "users/u1/photos/photo_abc.jpg", PhotoPath("u1", "photo_abc"))
}

func TestOwnedBy(t *testing.T) {
	assert.True(t, OwnedBy("users/u1/photos/p.jpg", "u1"))
	assert.False(t, OwnedBy("users/u2/photos/p.jpg", "u1"))
	assert.False(t, OwnedBy("users/u1/../u2/photos/p.jpg", "u1"))
	assert.False(t, OwnedBy("users/u1/photos/p.jpg", ""))
}

func TestStores(t *testing.T) {
	fs, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	for name, s := range map[string]Store{"memory": NewMemoryStore(), "fs": fs} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := PhotoPath("u1", "photo_1")

			_, err := s.Get(ctx, p)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Put(ctx, p, []byte("jpeg-bytes"), "image/jpeg"))
			got, err := s.Get(ctx, p)
			require.NoError(t, err)
			assert.Equal(t, []byte("jpeg-bytes"), got)

			// overwrite
			require.NoError(t, s.Put(ctx, p, []byte("v2"), "image/jpeg"))
			got, err = s.Get(ctx, p)
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), got)

			assert.Error(t, s.Put(ctx, "users/u1/../x.jpg", nil, ""))
			assert.Error(t, s.Put(ctx, "", nil, ""))
		})
	}
}
