package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rafacovez/notify/internal/shared"
	"github.com/rafacovez/notify/internal/spotify"
	"github.com/rafacovez/notify/internal/store"
)

// fakeResolver serves playlists from a map, returning ErrNotFound for any
// other id.
type fakeResolver struct {
	playlists map[string]*spotify.Playlist
}

func (f *fakeResolver) GetPlaylist(ctx context.Context, token, playlistID string) (*spotify.Playlist, error) {
	if p, ok := f.playlists[playlistID]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlistID)
}

func setupRegistry(t *testing.T, playlists ...*spotify.Playlist) (*Registry, *store.Store) {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	st := store.New(db)
	err = st.CreateOrUpdateUser(context.Background(), store.User{UserID: 1, RefreshToken: "r"})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	resolver := &fakeResolver{playlists: make(map[string]*spotify.Playlist)}
	for _, p := range playlists {
		resolver.playlists[p.ID] = p
	}

	return NewRegistry(st, resolver), st
}

func testPlaylist(id string) *spotify.Playlist {
	return &spotify.Playlist{ID: id, Name: "Playlist " + id, SnapshotID: "snap-" + id}
}

func TestRegistryAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("records snapshot", func(t *testing.T) {
		r, st := setupRegistry(t, testPlaylist("p1"))

		playlist, err := r.Add(ctx, "token", 1, "p1")
		if err != nil {
			t.Fatalf("failed to add: %v", err)
		}
		if playlist.Name != "Playlist p1" {
			t.Errorf("unexpected playlist returned: %+v", playlist)
		}

		snapshot, err := st.GetTrackingSnapshot(ctx, 1, "p1")
		if err != nil {
			t.Fatalf("failed to read snapshot: %v", err)
		}
		if snapshot != "snap-p1" {
			t.Errorf("expected snap-p1, got %q", snapshot)
		}
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		r, _ := setupRegistry(t, testPlaylist("p1"))

		if _, err := r.Add(ctx, "token", 1, "p1"); err != nil {
			t.Fatalf("failed to add: %v", err)
		}
		_, err := r.Add(ctx, "token", 1, "p1")
		if !errors.Is(err, shared.ErrAlreadyTracked) {
			t.Errorf("expected ErrAlreadyTracked, got %v", err)
		}
	})

	t.Run("enforces limit", func(t *testing.T) {
		playlists := make([]*spotify.Playlist, 0, MaxTracked+1)
		for i := 0; i <= MaxTracked; i++ {
			playlists = append(playlists, testPlaylist(fmt.Sprintf("p%d", i)))
		}
		r, _ := setupRegistry(t, playlists...)

		for i := 0; i < MaxTracked; i++ {
			if _, err := r.Add(ctx, "token", 1, fmt.Sprintf("p%d", i)); err != nil {
				t.Fatalf("failed to add p%d: %v", i, err)
			}
		}

		_, err := r.Add(ctx, "token", 1, fmt.Sprintf("p%d", MaxTracked))
		if !errors.Is(err, shared.ErrLimitReached) {
			t.Errorf("expected ErrLimitReached, got %v", err)
		}
	})

	t.Run("unresolvable playlist", func(t *testing.T) {
		r, st := setupRegistry(t)

		_, err := r.Add(ctx, "token", 1, "ghost")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}

		count, err := st.CountTrackingForUser(ctx, 1)
		if err != nil {
			t.Fatalf("failed to count: %v", err)
		}
		if count != 0 {
			t.Errorf("expected no tracking after failed add, got %d", count)
		}
	})

	t.Run("concurrent adds never exceed limit", func(t *testing.T) {
		const attempts = 8
		playlists := make([]*spotify.Playlist, 0, attempts)
		for i := 0; i < attempts; i++ {
			playlists = append(playlists, testPlaylist(fmt.Sprintf("p%d", i)))
		}
		r, st := setupRegistry(t, playlists...)

		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				r.Add(ctx, "token", 1, id)
			}(fmt.Sprintf("p%d", i))
		}
		wg.Wait()

		count, err := st.CountTrackingForUser(ctx, 1)
		if err != nil {
			t.Fatalf("failed to count: %v", err)
		}
		if count > MaxTracked {
			t.Errorf("limit breached: %d entries", count)
		}
	})
}

func TestRegistryRemove(t *testing.T) {
	ctx := context.Background()

	t.Run("frees capacity", func(t *testing.T) {
		r, _ := setupRegistry(t, testPlaylist("p1"), testPlaylist("p2"), testPlaylist("p3"), testPlaylist("p4"))

		for _, id := range []string{"p1", "p2", "p3"} {
			if _, err := r.Add(ctx, "token", 1, id); err != nil {
				t.Fatalf("failed to add %s: %v", id, err)
			}
		}

		if err := r.Remove(ctx, 1, "p2"); err != nil {
			t.Fatalf("failed to remove: %v", err)
		}
		if _, err := r.Add(ctx, "token", 1, "p4"); err != nil {
			t.Errorf("expected add to succeed after remove, got %v", err)
		}
	})

	t.Run("missing entry", func(t *testing.T) {
		r, _ := setupRegistry(t)

		err := r.Remove(ctx, 1, "ghost")
		if !errors.Is(err, shared.ErrNotTracked) {
			t.Errorf("expected ErrNotTracked, got %v", err)
		}
	})
}

func TestRegistryList(t *testing.T) {
	ctx := context.Background()
	r, _ := setupRegistry(t, testPlaylist("p1"), testPlaylist("p2"))

	for _, id := range []string{"p1", "p2"} {
		if _, err := r.Add(ctx, "token", 1, id); err != nil {
			t.Fatalf("failed to add %s: %v", id, err)
		}
	}

	ids, err := r.List(ctx, 1)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 tracked playlists, got %d", len(ids))
	}
}
