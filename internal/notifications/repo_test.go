package notifications

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendorr/vendorr-edge/pkg/db/dbtest"
	"github.com/vendorr/vendorr-edge/pkg/db/models"
)

func seedRepo(t *testing.T, count int) (Repository, time.Time) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t).DB())
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		inserted, err := repo.Insert(context.Background(), &models.Notification{
			ID:        fmt.Sprintf("n-%02d", i),
			Title:     "title",
			Message:   "message",
			Source:    "push",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		require.True(t, inserted)
	}
	return repo, base
}

func TestRepositoryInsertIgnoresExistingID(t *testing.T) {
	repo, base := seedRepo(t, 1)
	inserted, err := repo.Insert(context.Background(), &models.Notification{
		ID: "n-00", Title: "again", Message: "again", Source: "sync", CreatedAt: base,
	})
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestRepositoryListPagesByKeyset(t *testing.T) {
	repo, _ := seedRepo(t, 5)
	ctx := context.Background()

	first, next, err := repo.List(ctx, listNotificationsParams{Limit: 2})
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, []string{"n-04", "n-03"}, rowIDs(first))

	second, next, err := repo.List(ctx, listNotificationsParams{Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, []string{"n-02", "n-01"}, rowIDs(second))

	last, next, err := repo.List(ctx, listNotificationsParams{Limit: 2, Cursor: next})
	require.NoError(t, err)
	assert.Nil(t, next)
	assert.Equal(t, []string{"n-00"}, rowIDs(last))
}

func TestRepositoryReadState(t *testing.T) {
	repo, base := seedRepo(t, 3)
	ctx := context.Background()
	now := base.Add(time.Hour)

	res, err := repo.MarkRead(ctx, "n-01", now)
	require.NoError(t, err)
	assert.Equal(t, notificationMarkResult{Updated: true, Found: true}, res)

	res, err = repo.MarkRead(ctx, "n-01", now)
	require.NoError(t, err)
	assert.Equal(t, notificationMarkResult{Found: true}, res)

	res, err = repo.MarkRead(ctx, "missing", now)
	require.NoError(t, err)
	assert.Equal(t, notificationMarkResult{}, res)

	unreadRows, _, err := repo.List(ctx, listNotificationsParams{UnreadOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"n-02", "n-00"}, rowIDs(unreadRows))

	updated, err := repo.MarkAllRead(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated)

	count, err := repo.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRepositoryDelete(t *testing.T) {
	repo, _ := seedRepo(t, 3)
	ctx := context.Background()

	removed, err := repo.Delete(ctx, "n-00")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(ctx, "n-00")
	require.NoError(t, err)
	assert.False(t, removed)

	n, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func rowIDs(rows []models.Notification) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ID)
	}
	return out
}
