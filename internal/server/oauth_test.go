package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rafacovez/notify/internal/shared"
	"github.com/rafacovez/notify/internal/spotify"
	"github.com/rafacovez/notify/internal/store"
	"golang.org/x/oauth2"
)

type fakeExchanger struct {
	token *oauth2.Token
	err   error
}

func (f *fakeExchanger) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return f.token, f.err
}

type fakeProfile struct {
	user *spotify.User
	err  error
}

func (f *fakeProfile) Me(ctx context.Context, token string) (*spotify.User, error) {
	return f.user, f.err
}

type fakeGreeter struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeGreeter) SendMessage(chatID int64, text string, linkable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, text)
	return nil
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return store.New(db)
}

func TestOAuthCallback(t *testing.T) {
	validToken := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh"}
	profile := &fakeProfile{user: &spotify.User{ID: "spotify_user", DisplayName: "Jamie"}}

	t.Run("persists user and greets", func(t *testing.T) {
		st := setupTestStore(t)
		states := NewStateStore()
		greeter := &fakeGreeter{}
		h := NewOAuthHandler(states, &fakeExchanger{token: validToken}, profile, st, greeter, nil)

		state := states.Issue(42)
		req := httptest.NewRequest(http.MethodGet, "/callback?state="+state+"&code=authcode", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		refresh, err := st.GetRefreshToken(context.Background(), 42)
		if err != nil {
			t.Fatalf("failed to read refresh token: %v", err)
		}
		if refresh != "refresh" {
			t.Errorf("expected refresh token persisted, got %q", refresh)
		}

		if len(greeter.messages) != 1 {
			t.Errorf("expected one greeting, got %v", greeter.messages)
		}
	})

	t.Run("rejects unknown state", func(t *testing.T) {
		st := setupTestStore(t)
		h := NewOAuthHandler(NewStateStore(), &fakeExchanger{token: validToken}, profile, st, nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/callback?state=bogus&code=authcode", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("rejects replayed state", func(t *testing.T) {
		st := setupTestStore(t)
		states := NewStateStore()
		h := NewOAuthHandler(states, &fakeExchanger{token: validToken}, profile, st, nil, nil)

		state := states.Issue(42)
		url := "/callback?state=" + state + "&code=authcode"

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("first callback should succeed, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected replay to be rejected, got %d", rec.Code)
		}
	})

	t.Run("denied authorization", func(t *testing.T) {
		st := setupTestStore(t)
		states := NewStateStore()
		h := NewOAuthHandler(states, &fakeExchanger{token: validToken}, profile, st, nil, nil)

		state := states.Issue(42)
		req := httptest.NewRequest(http.MethodGet, "/callback?state="+state+"&error=access_denied", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}

		exists, err := st.UserExists(context.Background(), 42)
		if err != nil {
			t.Fatalf("failed to check user: %v", err)
		}
		if exists {
			t.Error("expected no user persisted after denial")
		}
	})

	t.Run("failed exchange", func(t *testing.T) {
		st := setupTestStore(t)
		states := NewStateStore()
		exchanger := &fakeExchanger{err: errors.New("exchange failed")}
		h := NewOAuthHandler(states, exchanger, profile, st, nil, nil)

		state := states.Issue(42)
		req := httptest.NewRequest(http.MethodGet, "/callback?state="+state+"&code=authcode", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("missing refresh token", func(t *testing.T) {
		st := setupTestStore(t)
		states := NewStateStore()
		exchanger := &fakeExchanger{token: &oauth2.Token{AccessToken: "access"}}
		h := NewOAuthHandler(states, exchanger, profile, st, nil, nil)

		state := states.Issue(42)
		req := httptest.NewRequest(http.MethodGet, "/callback?state="+state+"&code=authcode", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("method filtering", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 for GET, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405 for POST, got %d", rec.Code)
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mw("first"), mw("second"))
		router.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if len(order) != 2 || order[0] != "first" || order[1] != "second" {
			t.Errorf("unexpected middleware order %v", order)
		}
	})
}
