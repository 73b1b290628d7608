package cleanup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"safewatch-backend/pkg/media"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticRefs map[string]struct{}

func (r staticRefs) MediaRefs(context.Context) (map[string]struct{}, error) {
	return r, nil
}

type failingRefs struct{}

func (failingRefs) MediaRefs(context.Context) (map[string]struct{}, error) {
	return nil, errors.New("db down")
}

func saveAged(t *testing.T, store *media.LocalStore, age time.Duration) string {
	t.Helper()
	ref, err := store.Save(context.Background(), "a.jpg", strings.NewReader("x"))
	require.NoError(t, err)

	name, err := media.NameFromRef(ref)
	require.NoError(t, err)
	when := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(filepath.Join(store.Dir(), name), when, when))
	return ref
}

func TestMediaSweeper_Sweep(t *testing.T) {
	store, err := media.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	referenced := saveAged(t, store, 2*time.Hour)
	orphan := saveAged(t, store, 2*time.Hour)
	young := saveAged(t, store, time.Minute)

	sweeper := NewMediaSweeper(store, staticRefs{referenced: {}}, time.Hour, time.Hour, zerolog.Nop())

	removed, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Open(context.Background(), orphan)
	assert.ErrorIs(t, err, media.ErrNotFound)

	for _, ref := range []string{referenced, young} {
		body, err := store.Open(context.Background(), ref)
		require.NoError(t, err, ref)
		body.Close()
	}
}

func TestMediaSweeper_RefsErrorRemovesNothing(t *testing.T) {
	store, err := media.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ref := saveAged(t, store, 2*time.Hour)

	sweeper := NewMediaSweeper(store, failingRefs{}, time.Hour, time.Hour, zerolog.Nop())
	_, err = sweeper.Sweep(context.Background())
	assert.Error(t, err)

	body, err := store.Open(context.Background(), ref)
	require.NoError(t, err)
	body.Close()
}

func TestMediaSweeper_StartStop(t *testing.T) {
	store, err := media.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	orphan := saveAged(t, store, 2*time.Hour)

	sweeper := NewMediaSweeper(store, staticRefs{}, time.Hour, time.Hour, zerolog.Nop())
	go sweeper.Start()

	assert.Eventually(t, func() bool {
		_, err := store.Open(context.Background(), orphan)
		return errors.Is(err, media.ErrNotFound)
	}, time.Second, 10*time.Millisecond)

	sweeper.Stop()
}
