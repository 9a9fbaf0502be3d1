package service

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"xclone/internal/model"
	"xclone/internal/queue"
)

type followFixture struct {
	store     *memStore
	follows   *mockFollowRepository
	cache     *mockFeedCache
	notifier  *mockNotifier
	publisher *mockPublisher
	svc       *FollowService
}

func newFollowFixture() *followFixture {
	store := newMemStore()
	f := &followFixture{
		store:     store,
		follows:   &mockFollowRepository{store: store},
		cache:     newMockFeedCache(),
		notifier:  &mockNotifier{},
		publisher: &mockPublisher{},
	}
	f.svc = NewFollowService(f.follows, &mockUserRepository{store: store}, f.cache, f.notifier, f.publisher)
	return f
}

// assertSymmetric checks that the two stored copies of every edge between a and b agree.
func assertSymmetric(t *testing.T, store *memStore, a, b primitive.ObjectID) {
	t.Helper()
	ua, ub := store.user(a), store.user(b)
	if ua.IsFollowing(b) != ub.HasFollower(a) {
		t.Errorf("edge %s->%s asymmetric: following=%v followers=%v", a.Hex(), b.Hex(), ua.IsFollowing(b), ub.HasFollower(a))
	}
	if ub.IsFollowing(a) != ua.HasFollower(b) {
		t.Errorf("edge %s->%s asymmetric", b.Hex(), a.Hex())
	}
}

// =============================================================================
// TOGGLE FOLLOW TESTS
// =============================================================================

func TestFollowService_ToggleFollow_FollowThenUnfollow(t *testing.T) {
	f := newFollowFixture()
	ctx := context.Background()
	alice := f.store.addUser("alice")
	bob := f.store.addUser("bob")

	res, err := f.svc.ToggleFollow(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("follow: %v", err)
	}
	if !res.Following {
		t.Error("expected Following=true after first toggle")
	}
	if !f.store.user(alice.ID).IsFollowing(bob.ID) || !f.store.user(bob.ID).HasFollower(alice.ID) {
		t.Fatal("edge not written on both sides")
	}
	if len(f.notifier.calls) != 1 || f.notifier.calls[0].Type != model.NotificationTypeFollow ||
		f.notifier.calls[0].From != alice.ID || f.notifier.calls[0].To != bob.ID {
		t.Errorf("notifications = %+v, want one follow alice->bob", f.notifier.calls)
	}

	res, err = f.svc.ToggleFollow(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("unfollow: %v", err)
	}
	if res.Following {
		t.Error("expected Following=false after second toggle")
	}
	if f.store.user(alice.ID).IsFollowing(bob.ID) || f.store.user(bob.ID).HasFollower(alice.ID) {
		t.Fatal("edge not removed on both sides")
	}
	if len(f.notifier.calls) != 1 {
		t.Errorf("unfollow must not notify, got %d notifications", len(f.notifier.calls))
	}
	assertSymmetric(t, f.store, alice.ID, bob.ID)
}

func TestFollowService_ToggleFollow_InvalidatesActorFeed(t *testing.T) {
	f := newFollowFixture()
	ctx := context.Background()
	alice := f.store.addUser("alice")
	bob := f.store.addUser("bob")

	if _, err := f.svc.ToggleFollow(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("follow: %v", err)
	}
	if len(f.cache.invalidated) != 1 || f.cache.invalidated[0] != alice.ID.Hex() {
		t.Errorf("invalidated = %v, want [%s]", f.cache.invalidated, alice.ID.Hex())
	}
}

func TestFollowService_ToggleFollow_Errors(t *testing.T) {
	f := newFollowFixture()
	ctx := context.Background()
	alice := f.store.addUser("alice")

	tests := []struct {
		name    string
		actor   primitive.ObjectID
		target  primitive.ObjectID
		wantErr error
	}{
		{"self", alice.ID, alice.ID, model.ErrCannotFollowSelf},
		{"missing target", alice.ID, primitive.NewObjectID(), model.ErrUserNotFound},
		{"missing actor", primitive.NewObjectID(), alice.ID, model.ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ToggleFollow(ctx, tt.actor, tt.target)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if len(f.notifier.calls) != 0 {
		t.Errorf("failed toggles must not notify")
	}
}

// =============================================================================
// PARTIAL WRITE / REPAIR TESTS
// =============================================================================

func TestFollowService_ToggleFollow_SecondWriteFailsThenRepairedInline(t *testing.T) {
	f := newFollowFixture()
	ctx := context.Background()
	alice := f.store.addUser("alice")
	bob := f.store.addUser("bob")

	f.follows.failAddFollowing = func(call int) error {
		if call == 1 {
			return errStoreDown
		}
		return nil
	}

	_, err := f.svc.ToggleFollow(ctx, alice.ID, bob.ID)
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("error = %v, want wrapped store failure", err)
	}

	assertSymmetric(t, f.store, alice.ID, bob.ID)
	if !f.store.user(alice.ID).IsFollowing(bob.ID) {
		t.Error("union repair should have restored alice.following")
	}
	if len(f.publisher.events) != 0 {
		t.Errorf("no repair job expected after a successful inline repair, got %d", len(f.publisher.events))
	}
}

func TestFollowService_ToggleFollow_RepairQueuedWhenInlineFails(t *testing.T) {
	f := newFollowFixture()
	ctx := context.Background()
	alice := f.store.addUser("alice")
	bob := f.store.addUser("bob")

	f.follows.failAddFollowing = func(int) error { return errStoreDown }

	if _, err := f.svc.ToggleFollow(ctx, alice.ID, bob.ID); err == nil {
		t.Fatal("expected error")
	}

	if len(f.publisher.events) != 1 {
		t.Fatalf("queued %d events, want 1", len(f.publisher.events))
	}
	ev := f.publisher.events[0]
	if ev.Type != queue.EventEdgeRepair || ev.FollowerID != alice.ID.Hex() || ev.FolloweeID != bob.ID.Hex() {
		t.Errorf("queued event = %+v", ev)
	}

	// The worker's later attempt succeeds once the store recovers.
	f.follows.failAddFollowing = nil
	if err := f.svc.Reconcile(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	assertSymmetric(t, f.store, alice.ID, bob.ID)
}

func TestFollowService_ToggleUnfollow_SecondWriteFailsKeepsEdge(t *testing.T) {
	f := newFollowFixture()
	ctx := context.Background()
	alice := f.store.addUser("alice")
	bob := f.store.addUser("bob")

	if _, err := f.svc.ToggleFollow(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("follow: %v", err)
	}

	f.follows.failRemoveFollowing = func(int) error { return errStoreDown }
	if _, err := f.svc.ToggleFollow(ctx, alice.ID, bob.ID); err == nil {
		t.Fatal("expected error")
	}

	// The surviving copy wins: the edge is restored rather than half removed.
	assertSymmetric(t, f.store, alice.ID, bob.ID)
	if !f.store.user(bob.ID).HasFollower(alice.ID) {
		t.Error("expected edge restored on bob.followers")
	}
}

func TestFollowService_Reconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("restores follower side", func(t *testing.T) {
		f := newFollowFixture()
		a, b := f.store.addUser("a"), f.store.addUser("b")
		f.store.users[a.ID].Following = []primitive.ObjectID{b.ID}

		if err := f.svc.Reconcile(ctx, a.ID, b.ID); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		if !f.store.user(b.ID).HasFollower(a.ID) {
			t.Error("b.followers should contain a")
		}
	})

	t.Run("restores following side", func(t *testing.T) {
		f := newFollowFixture()
		a, b := f.store.addUser("a"), f.store.addUser("b")
		f.store.users[b.ID].Followers = []primitive.ObjectID{a.ID}

		if err := f.svc.Reconcile(ctx, a.ID, b.ID); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		if !f.store.user(a.ID).IsFollowing(b.ID) {
			t.Error("a.following should contain b")
		}
		if len(f.cache.invalidated) != 1 {
			t.Errorf("follower feed should be invalidated, got %v", f.cache.invalidated)
		}
	})

	t.Run("consistent edge is a no-op", func(t *testing.T) {
		f := newFollowFixture()
		a, b := f.store.addUser("a"), f.store.addUser("b")
		if err := f.svc.Reconcile(ctx, a.ID, b.ID); err != nil {
			t.Fatalf("Reconcile: %v", err)
		}
		if f.follows.addFollowingCalls != 0 {
			t.Error("no writes expected")
		}
	})

	t.Run("missing user is skipped", func(t *testing.T) {
		f := newFollowFixture()
		a := f.store.addUser("a")
		if err := f.svc.Reconcile(ctx, a.ID, primitive.NewObjectID()); err != nil {
			t.Errorf("Reconcile = %v, want nil", err)
		}
	})
}

// =============================================================================
// LIST TESTS
// =============================================================================

func TestFollowService_GetFollowersNewestFirst(t *testing.T) {
	f := newFollowFixture()
	ctx := context.Background()
	target := f.store.addUser("target")
	first := f.store.addUser("first")
	second := f.store.addUser("second")

	for _, u := range []*model.User{first, second} {
		if _, err := f.svc.ToggleFollow(ctx, u.ID, target.ID); err != nil {
			t.Fatalf("follow: %v", err)
		}
	}

	res, err := f.svc.GetFollowers(ctx, target.ID)
	if err != nil {
		t.Fatalf("GetFollowers: %v", err)
	}
	if len(res.Users) != 2 || res.Users[0].ID != second.ID || res.Users[1].ID != first.ID {
		t.Errorf("followers = %+v, want [second first]", res.Users)
	}

	following, err := f.svc.GetFollowing(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetFollowing: %v", err)
	}
	if len(following.Users) != 1 || following.Users[0].Username != "target" {
		t.Errorf("following = %+v", following.Users)
	}
}
