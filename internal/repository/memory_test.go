package repository

import (
	"context"
	"testing"
	"time"

	"safewatch-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAlertRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAlertRepository()
	lat := 12.5

	created, err := repo.Create(ctx, &models.Alert{OwnerID: "u1", Title: "t", Latitude: &lat, MediaRef: "/uploads/1.jpg"})
	require.NoError(t, err)
	assert.False(t, created.ID.IsZero())

	// returned values are copies
	*created.Latitude = 99
	found, err := repo.FindByID(ctx, created.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 12.5, *found.Latitude)

	title := "renamed"
	updated, err := repo.Update(ctx, created.ID.Hex(), &models.AlertPatch{
		Title:     &title,
		Longitude: models.OptionalFloat{Set: true, Value: nil},
	})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, "u1", updated.OwnerID)

	refs, err := repo.MediaRefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"/uploads/1.jpg": {}}, refs)

	require.NoError(t, repo.Delete(ctx, created.ID.Hex()))
	assert.ErrorIs(t, repo.Delete(ctx, created.ID.Hex()), ErrAlertNotFound)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryAlertRepository_OrderAndFilter(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAlertRepository()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.SetClock(func() time.Time { return clock })

	a, _ := repo.Create(ctx, &models.Alert{OwnerID: "u1", Title: "a"})
	b, _ := repo.Create(ctx, &models.Alert{OwnerID: "u2", Title: "b"})
	clock = clock.Add(time.Second)
	c, _ := repo.Create(ctx, &models.Alert{OwnerID: "u1", Title: "c"})

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].Title, all[1].Title, all[2].Title})

	mine, err := repo.FindByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, c.ID, mine[0].ID)
	assert.Equal(t, a.ID, mine[1].ID)
	assert.NotEqual(t, b.ID, mine[1].ID)

	none, err := repo.FindByOwner(ctx, "u3")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestMemoryAlertRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAlertRepository()

	_, err := repo.FindByID(ctx, "bad")
	assert.ErrorIs(t, err, ErrAlertNotFound)
	_, err = repo.FindByID(ctx, "507f1f77bcf86cd799439011")
	assert.ErrorIs(t, err, ErrAlertNotFound)
	_, err = repo.Update(ctx, "507f1f77bcf86cd799439011", &models.AlertPatch{})
	assert.ErrorIs(t, err, ErrAlertNotFound)
}
