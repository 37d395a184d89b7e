package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLink(t *testing.T, store Gateway, code, owner string) {
	t.Helper()
	require.NoError(t, store.CreateLink(t.Context(), &Link{
		ShortCode: code,
		OwnerID:   owner,
		TargetURL: "https://example.com/",
		CreatedAt: time.Now().UTC(),
	}))
}

func clickDelta(device, browser, referrer string, shared bool) ClickDelta {
	shares := 0
	if shared {
		shares = 1
	}
	return ClickDelta{
		Impressions: 1,
		Clicks:      1,
		Shares:      shares,
		Device:      device,
		Browser:     browser,
		Referrer:    referrer,
		Event: &ClickEvent{
			Timestamp:  time.Now().UTC(),
			DeviceType: device,
			Browser:    browser,
			Referrer:   referrer,
			IsShared:   shared,
		},
	}
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	seedLink(t, store, "abc1234", "user-1")

	link, err := store.GetLink(t.Context(), "abc1234")
	require.NoError(t, err)
	assert.Equal(t, "user-1", link.OwnerID)

	// The zeroed record is co-created with the link.
	view, err := store.GetRecord(t.Context(), "abc1234")
	require.NoError(t, err)
	assert.Zero(t, view.Impressions)
	assert.Zero(t, view.Clicks)

	err = store.CreateLink(t.Context(), &Link{ShortCode: "abc1234"})
	assert.ErrorIs(t, err, ErrCodeTaken)

	_, err = store.GetLink(t.Context(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreApplyClick(t *testing.T) {
	store := NewMemoryStore()
	seedLink(t, store, "abc1234", "user-1")

	require.NoError(t, store.ApplyClick(t.Context(), "abc1234", clickDelta("Mobile", "Chrome", "Google", false)))
	require.NoError(t, store.ApplyClick(t.Context(), "abc1234", clickDelta("Mobile", "Safari", "Google", true)))
	require.NoError(t, store.ApplyClick(t.Context(), "abc1234", ClickDelta{Impressions: 1}))

	view, err := store.GetRecord(t.Context(), "abc1234")
	require.NoError(t, err)
	assert.Equal(t, int64(3), view.Impressions)
	assert.Equal(t, int64(2), view.Clicks)
	assert.Equal(t, int64(1), view.Shares)
	assert.GreaterOrEqual(t, view.Impressions, view.Clicks)
	assert.Equal(t, int64(2), view.Devices["Mobile"])
	assert.Equal(t, int64(1), view.Browsers["Chrome"])
	assert.Equal(t, int64(1), view.Browsers["Safari"])
	assert.Equal(t, int64(2), view.Referrers["Google"])

	events, err := store.ListClicks(t.Context(), "abc1234", time.Time{})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	err = store.ApplyClick(t.Context(), "missing", clickDelta("Mobile", "Chrome", "Google", false))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreListClicksSince(t *testing.T) {
	store := NewMemoryStore()
	seedLink(t, store, "abc1234", "user-1")

	old := clickDelta("Desktop", "Firefox", "Unknown", false)
	old.Event.Timestamp = time.Now().UTC().AddDate(0, 0, -40)
	require.NoError(t, store.ApplyClick(t.Context(), "abc1234", old))
	require.NoError(t, store.ApplyClick(t.Context(), "abc1234", clickDelta("Mobile", "Chrome", "Google", false)))

	cutoff := time.Now().UTC().AddDate(0, 0, -30)
	events, err := store.ListAllClicks(t.Context(), cutoff)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Chrome", events[0].Browser)
}

func TestMemoryStoreDeleteLink(t *testing.T) {
	store := NewMemoryStore()
	seedLink(t, store, "abc1234", "user-1")
	require.NoError(t, store.ApplyClick(t.Context(), "abc1234", clickDelta("Mobile", "Chrome", "Google", false)))

	require.NoError(t, store.DeleteLink(t.Context(), "abc1234"))

	_, err := store.GetLink(t.Context(), "abc1234")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetRecord(t.Context(), "abc1234")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.DeleteLink(t.Context(), "abc1234"), ErrNotFound)
}
