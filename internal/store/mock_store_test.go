// ABOUTME: Unit tests for MockStore to ensure behavior matches SQLiteStore
// ABOUTME: Focuses on the always-fail switch and copy semantics of the in-memory implementation

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_SaveAndGet(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	reminder := NewReminder("title", "description", "location", ptr(1), ptr(1))
	require.NoError(t, store.SaveReminder(ctx, reminder))

	got, err := store.GetReminder(ctx, reminder.ID)
	require.NoError(t, err)
	assert.Equal(t, reminder, got)
}

func TestMockStore_ReturnsCopies(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	reminder := testReminder("copy-1")
	require.NoError(t, store.SaveReminder(ctx, reminder))

	// Mutating the caller's value must not reach the stored record
	reminder.Title = "mutated"
	*reminder.Latitude = 99

	got, err := store.GetReminder(ctx, "copy-1")
	require.NoError(t, err)
	assert.Equal(t, "title", got.Title)
	assert.Equal(t, 10.0, *got.Latitude)
}

func TestMockStore_SeedPreservesOrder(t *testing.T) {
	store := NewMockStore(testReminder("1"), testReminder("2"), testReminder("3"))

	all, err := store.GetReminders(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "1", all[0].ID)
	assert.Equal(t, "2", all[1].ID)
	assert.Equal(t, "3", all[2].ID)
}

func TestMockStore_SaveTwiceKeepsOneRecord(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	require.NoError(t, store.SaveReminder(ctx, testReminder("dup")))
	require.NoError(t, store.SaveReminder(ctx, testReminder("dup")))

	all, err := store.GetReminders(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMockStore_ShouldReturnError(t *testing.T) {
	store := NewMockStore(testReminder("r1"))
	store.SetShouldReturnError(true)
	ctx := context.Background()

	_, err := store.GetReminders(ctx)
	require.Error(t, err)
	assert.Equal(t, "Reminders not found", err.Error())

	_, err = store.GetReminder(ctx, "r1")
	require.Error(t, err)
	assert.Equal(t, "Error", err.Error())

	assert.Error(t, store.Ping(ctx))

	store.SetShouldReturnError(false)
	_, err = store.GetReminder(ctx, "r1")
	assert.NoError(t, err)
}

func TestMockStore_DeleteAll(t *testing.T) {
	store := NewMockStore(testReminder("r1"))
	ctx := context.Background()

	require.NoError(t, store.DeleteAllReminders(ctx))

	_, err := store.GetReminder(ctx, "r1")
	assert.ErrorIs(t, err, ErrReminderNotFound)
	assert.EqualError(t, err, "Reminder not found!")

	all, err := store.GetReminders(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMockStore_Geofences(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	require.NoError(t, store.SaveGeofence(ctx, &Geofence{ID: "a", RadiusMeters: 500, RegisteredAt: time.Now()}))
	require.NoError(t, store.SaveGeofence(ctx, &Geofence{ID: "b", RadiusMeters: 500, RegisteredAt: time.Now()}))
	require.NoError(t, store.SaveGeofence(ctx, &Geofence{ID: "a", RadiusMeters: 250, RegisteredAt: time.Now()}))

	fences, err := store.ListGeofences(ctx)
	require.NoError(t, err)
	require.Len(t, fences, 2)
	assert.Equal(t, "a", fences[0].ID)
	assert.Equal(t, 250.0, fences[0].RadiusMeters)
	assert.Nil(t, fences[0].Inside)

	require.NoError(t, store.SetGeofenceInside(ctx, "b", true))
	assert.ErrorIs(t, store.SetGeofenceInside(ctx, "missing", true), ErrGeofenceNotFound)
	fences, err = store.ListGeofences(ctx)
	require.NoError(t, err)
	require.NotNil(t, fences[1].Inside)
	assert.True(t, *fences[1].Inside)

	require.NoError(t, store.DeleteGeofence(ctx, "a"))
	assert.ErrorIs(t, store.DeleteGeofence(ctx, "a"), ErrGeofenceNotFound)

	require.NoError(t, store.DeleteAllGeofences(ctx))
	fences, err = store.ListGeofences(ctx)
	require.NoError(t, err)
	assert.Empty(t, fences)
}

func TestMockStore_Close(t *testing.T) {
	store := NewMockStore()
	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, store.Close())
	assert.Error(t, store.Ping(context.Background()))
}

func TestReminder_EnsureID(t *testing.T) {
	r := &Reminder{Title: "t"}
	id := r.EnsureID()
	assert.NotEmpty(t, id)
	assert.Equal(t, id, r.EnsureID(), "existing ID must not be replaced")
}

func TestReminder_HasCoordinates(t *testing.T) {
	assert.True(t, testReminder("x").HasCoordinates())
	assert.False(t, (&Reminder{Latitude: ptr(1)}).HasCoordinates())
	assert.False(t, (&Reminder{}).HasCoordinates())
}

// Both implementations satisfy the full Store contract
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MockStore)(nil)
)
