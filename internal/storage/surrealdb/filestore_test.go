package surrealdb

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_SaveAndGet(t *testing.T) {
	db := testDB(t)
	store := NewFileStore(db, testLogger())
	ctx := context.Background()

	data := []byte("fake jpeg bytes")
	require.NoError(t, store.SaveFile(ctx, "photos", "ev_1/0_shelf.jpg", data, "image/jpeg"))

	got, contentType, err := store.GetFile(ctx, "photos", "ev_1/0_shelf.jpg")
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))
	assert.Equal(t, "image/jpeg", contentType)
}

func TestFileStore_GetMissing(t *testing.T) {
	db := testDB(t)
	store := NewFileStore(db, testLogger())

	_, _, err := store.GetFile(context.Background(), "photos", "nope.jpg")
	assert.Error(t, err)
}

func TestFileStore_HasAndDelete(t *testing.T) {
	db := testDB(t)
	store := NewFileStore(db, testLogger())
	ctx := context.Background()

	require.NoError(t, store.SaveFile(ctx, "photos", "ev_2/0_a.jpg", []byte("x"), "image/jpeg"))

	has, err := store.HasFile(ctx, "photos", "ev_2/0_a.jpg")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, store.DeleteFile(ctx, "photos", "ev_2/0_a.jpg"))
	has, err = store.HasFile(ctx, "photos", "ev_2/0_a.jpg")
	require.NoError(t, err)
	assert.False(t, has)

	// Deleting again is not an error.
	assert.NoError(t, store.DeleteFile(ctx, "photos", "ev_2/0_a.jpg"))
}

func TestFileStore_RejectsOversizedFile(t *testing.T) {
	db := testDB(t)
	store := NewFileStore(db, testLogger())

	big := make([]byte, maxCBORDocBytes)
	err := store.SaveFile(context.Background(), "photos", "huge.jpg", big, "image/jpeg")
	assert.Error(t, err)
}
