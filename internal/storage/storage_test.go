package storage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/catalog/internal/config"
)

func TestNew_SelectsDriver(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	t.Run("supabase", func(t *testing.T) {
		store, err := New(&config.Config{
			StorageDriver:      "supabase",
			StorageBucket:      "media",
			SupabaseURL:        "https://project.supabase.co/",
			SupabaseServiceKey: "key",
		}, logger)
		require.NoError(t, err)
		sb, ok := store.(*SupabaseStore)
		require.True(t, ok)
		assert.Equal(t, "https://project.supabase.co/storage/v1", sb.baseURL)
	})

	t.Run("minio", func(t *testing.T) {
		store, err := New(&config.Config{
			StorageDriver:  "minio",
			StorageBucket:  "media",
			MinioEndpoint:  "localhost:9000",
			MinioAccessKey: "a",
			MinioSecretKey: "b",
			MinioRegion:    "us-east-1",
		}, logger)
		require.NoError(t, err)
		assert.IsType(t, &MinioStore{}, store)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := New(&config.Config{StorageDriver: "ftp"}, logger)
		assert.Error(t, err)
	})
}

func TestCleanPath(t *testing.T) {
	assert.Equal(t, "assets/a/b.png", cleanPath(" /assets/a/b.png/ "))
	assert.Equal(t, "", cleanPath("/"))
}
