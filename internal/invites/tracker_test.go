package invites

import (
	"context"
	"errors"
	"testing"

	"gatewarden/internal/storage"

	"go.uber.org/zap"
)

type fakeFetcher struct {
	invites []Invite
	err     error
}

func (f *fakeFetcher) GuildInvites(_ string) ([]Invite, error) {
	return f.invites, f.err
}

func newTestTracker(t *testing.T) (*Tracker, *fakeFetcher, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	fetcher := &fakeFetcher{}
	tracker := NewTracker(store, zap.NewNop())
	tracker.SetFetcher(fetcher)
	return tracker, fetcher, store
}

func TestTrackJoinSingleIncrement(t *testing.T) {
	tracker, fetcher, store := newTestTracker(t)

	fetcher.invites = []Invite{
		{Code: "aaa", Uses: 5, InviterID: "inv1", InviterName: "carol"},
		{Code: "bbb", Uses: 2, InviterID: "inv2", InviterName: "dan"},
	}
	tracker.Snapshot("g1")

	fetcher.invites = []Invite{
		{Code: "aaa", Uses: 6, InviterID: "inv1", InviterName: "carol"},
		{Code: "bbb", Uses: 2, InviterID: "inv2", InviterName: "dan"},
	}
	attr, ok := tracker.TrackJoin(context.Background(), "g1", "u1")
	if !ok {
		t.Fatalf("expected attribution")
	}
	if attr.InviteCode != "aaa" || attr.InviterID != "inv1" {
		t.Fatalf("unexpected attribution: %+v", attr)
	}

	saved, err := store.GetInviteAttribution(context.Background(), "g1", "u1")
	if err != nil {
		t.Fatalf("get attribution: %v", err)
	}
	if saved.InviteCode != "aaa" {
		t.Fatalf("expected persisted code aaa, got %q", saved.InviteCode)
	}
}

func TestTrackJoinMultipleIncrementsIsUnknown(t *testing.T) {
	tracker, fetcher, store := newTestTracker(t)

	fetcher.invites = []Invite{
		{Code: "aaa", Uses: 5},
		{Code: "bbb", Uses: 2},
	}
	tracker.Snapshot("g1")

	fetcher.invites = []Invite{
		{Code: "aaa", Uses: 6},
		{Code: "bbb", Uses: 3},
	}
	if _, ok := tracker.TrackJoin(context.Background(), "g1", "u1"); ok {
		t.Fatalf("expected unknown inviter when two codes incremented")
	}
	if _, err := store.GetInviteAttribution(context.Background(), "g1", "u1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("no attribution should persist, got %v", err)
	}

	fetcher.invites = []Invite{
		{Code: "aaa", Uses: 7, InviterID: "inv1", InviterName: "carol"},
		{Code: "bbb", Uses: 3},
	}
	attr, ok := tracker.TrackJoin(context.Background(), "g1", "u2")
	if !ok {
		t.Fatalf("cache must be replaced after every poll")
	}
	if attr.InviteCode != "aaa" {
		t.Fatalf("expected code aaa after cache replacement, got %q", attr.InviteCode)
	}
}

func TestTrackJoinNewCodeCountsFromZero(t *testing.T) {
	tracker, fetcher, _ := newTestTracker(t)

	fetcher.invites = nil
	tracker.Snapshot("g1")

	fetcher.invites = []Invite{{Code: "fresh", Uses: 1, InviterID: "inv1", InviterName: "carol"}}
	attr, ok := tracker.TrackJoin(context.Background(), "g1", "u1")
	if !ok {
		t.Fatalf("expected attribution for new code with one use")
	}
	if attr.InviteCode != "fresh" {
		t.Fatalf("unexpected code %q", attr.InviteCode)
	}
}

func TestTrackJoinWithoutSnapshotIsUnknown(t *testing.T) {
	tracker, fetcher, _ := newTestTracker(t)

	fetcher.invites = []Invite{{Code: "aaa", Uses: 1}}
	if _, ok := tracker.TrackJoin(context.Background(), "g1", "u1"); ok {
		t.Fatalf("expected unknown inviter without prior snapshot")
	}

	fetcher.invites = []Invite{{Code: "aaa", Uses: 2, InviterID: "inv1"}}
	if _, ok := tracker.TrackJoin(context.Background(), "g1", "u2"); !ok {
		t.Fatalf("first call must prime the snapshot")
	}
}

func TestTrackJoinNoIncrementIsUnknown(t *testing.T) {
	tracker, fetcher, _ := newTestTracker(t)

	fetcher.invites = []Invite{{Code: "aaa", Uses: 5}}
	tracker.Snapshot("g1")

	if _, ok := tracker.TrackJoin(context.Background(), "g1", "u1"); ok {
		t.Fatalf("expected unknown inviter when no code incremented")
	}
}

func TestTrackJoinFetchErrorKeepsCache(t *testing.T) {
	tracker, fetcher, _ := newTestTracker(t)

	fetcher.invites = []Invite{{Code: "aaa", Uses: 5}}
	tracker.Snapshot("g1")

	fetcher.err = errors.New("api down")
	if _, ok := tracker.TrackJoin(context.Background(), "g1", "u1"); ok {
		t.Fatalf("expected unknown inviter on fetch error")
	}

	fetcher.err = nil
	fetcher.invites = []Invite{{Code: "aaa", Uses: 6, InviterID: "inv1"}}
	attr, ok := tracker.TrackJoin(context.Background(), "g1", "u2")
	if !ok || attr.InviteCode != "aaa" {
		t.Fatalf("cache must survive a failed fetch, got ok=%v attr=%+v", ok, attr)
	}
}

func TestTrackedCodes(t *testing.T) {
	tracker, fetcher, _ := newTestTracker(t)

	if _, ok := tracker.TrackedCodes("g1"); ok {
		t.Fatalf("expected no snapshot for unknown guild")
	}

	fetcher.invites = []Invite{{Code: "aaa", Uses: 1}, {Code: "bbb", Uses: 0}}
	tracker.Snapshot("g1")

	count, ok := tracker.TrackedCodes("g1")
	if !ok || count != 2 {
		t.Fatalf("expected 2 tracked codes, got %d ok=%v", count, ok)
	}

	tracker.Forget("g1")
	if _, ok := tracker.TrackedCodes("g1"); ok {
		t.Fatalf("expected snapshot forgotten")
	}
}
