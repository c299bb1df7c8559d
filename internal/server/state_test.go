package server

import "testing"

func TestStateStore(t *testing.T) {
	t.Run("issue and claim", func(t *testing.T) {
		s := NewStateStore()

		state := s.Issue(42)
		if state == "" {
			t.Fatal("expected a non-empty state token")
		}

		userID, ok := s.Claim(state)
		if !ok {
			t.Fatal("expected claim to succeed")
		}
		if userID != 42 {
			t.Errorf("expected user 42, got %d", userID)
		}
	})

	t.Run("claim is single use", func(t *testing.T) {
		s := NewStateStore()

		state := s.Issue(42)
		if _, ok := s.Claim(state); !ok {
			t.Fatal("first claim should succeed")
		}
		if _, ok := s.Claim(state); ok {
			t.Error("second claim should fail")
		}
	})

	t.Run("unknown state", func(t *testing.T) {
		s := NewStateStore()

		if _, ok := s.Claim("bogus"); ok {
			t.Error("expected claim of unknown state to fail")
		}
	})

	t.Run("tokens are unique per issue", func(t *testing.T) {
		s := NewStateStore()

		first := s.Issue(1)
		second := s.Issue(1)
		if first == second {
			t.Error("expected distinct tokens for repeated issues")
		}

		// Both stay claimable until used.
		if _, ok := s.Claim(first); !ok {
			t.Error("expected older token to remain claimable")
		}
		if _, ok := s.Claim(second); !ok {
			t.Error("expected newer token to remain claimable")
		}
	})
}
