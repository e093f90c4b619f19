package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"bff-service/internal/auth"
	"bff-service/internal/auth/provider"
)

type fakeGoogle struct {
	*httptest.Server

	mu           sync.Mutex
	delay        time.Duration
	lastVerifier string
	profile      map[string]any
}

func (f *fakeGoogle) setDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

func (f *fakeGoogle) dropClaim(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.profile, name)
}

func (f *fakeGoogle) verifier() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastVerifier
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()

	f := &fakeGoogle{
		profile: map[string]any{
			"sub":            "u1",
			"email":          "u1@x.com",
			"email_verified": true,
			"name":           "User One",
			"picture":        "https://example.com/u1.png",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		delay := f.delay
		f.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.lastVerifier = r.PostForm.Get("code_verifier")
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") != "validcode" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":             "invalid_grant",
				"error_description": "Bad Request",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-1",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(f.profile)
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeGoogle) endpoints() Endpoints {
	return Endpoints{
		Issuer:   f.URL,
		AuthURL:  f.URL + "/auth",
		TokenURL: f.URL + "/token",
		UserInfo: f.URL + "/userinfo",
		JWKS:     f.URL + "/certs",
	}
}

func newTestClient(t *testing.T, f *fakeGoogle, timeout time.Duration) *Client {
	t.Helper()

	c, err := New(context.Background(), Config{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		RedirectURL:  "http://localhost:3001/auth/callback",
		Timeout:      timeout,
		Endpoints:    f.endpoints(),
		HTTPClient:   f.Client(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(context.Background(), Config{ClientID: "id"}); err == nil {
		t.Fatal("expected error for incomplete config")
	}
}

func TestAuthorizationURL(t *testing.T) {
	f := newFakeGoogle(t)
	c := newTestClient(t, f, 0)

	raw := c.AuthorizationURL("s1", "verifier-1")
	if raw != c.AuthorizationURL("s1", "verifier-1") {
		t.Fatal("authorization url is not deterministic")
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.HasPrefix(raw, f.URL+"/auth?") {
		t.Fatalf("unexpected base: %s", raw)
	}

	q := u.Query()
	want := map[string]string{
		"client_id":             "client-1",
		"redirect_uri":          "http://localhost:3001/auth/callback",
		"response_type":         "code",
		"scope":                 "openid email profile",
		"access_type":           "offline",
		"prompt":                "consent",
		"state":                 "s1",
		"code_challenge":        oauth2.S256ChallengeFromVerifier("verifier-1"),
		"code_challenge_method": "S256",
	}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}

	plain, _ := url.Parse(c.AuthorizationURL("s1", ""))
	if plain.Query().Has("code_challenge") {
		t.Fatal("empty verifier must omit the challenge")
	}
}

func TestExchangeAndFetchProfile(t *testing.T) {
	f := newFakeGoogle(t)
	c := newTestClient(t, f, 0)
	ctx := context.Background()

	tok, err := c.ExchangeCode(ctx, "validcode", "verifier-1")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if tok.AccessToken != "access-1" {
		t.Fatalf("access token = %q", tok.AccessToken)
	}
	if v := f.verifier(); v != "verifier-1" {
		t.Fatalf("code_verifier = %q, want verifier-1", v)
	}

	profile, err := c.FetchProfile(ctx, tok)
	if err != nil {
		t.Fatalf("FetchProfile: %v", err)
	}
	want := auth.ProviderProfile{
		Provider:      auth.ProviderGoogle,
		Subject:       "u1",
		Email:         "u1@x.com",
		EmailVerified: true,
		Name:          "User One",
		Picture:       "https://example.com/u1.png",
	}
	if *profile != want {
		t.Fatalf("profile = %+v, want %+v", *profile, want)
	}
}

func TestExchangeFailures(t *testing.T) {
	t.Run("rejected code keeps provider detail", func(t *testing.T) {
		f := newFakeGoogle(t)
		c := newTestClient(t, f, 0)

		_, err := c.ExchangeCode(context.Background(), "badcode", "v")
		if !errors.Is(err, provider.ErrExchangeFailed) {
			t.Fatalf("want ErrExchangeFailed, got %v", err)
		}
		if !strings.Contains(err.Error(), "invalid_grant") {
			t.Fatalf("provider error code lost: %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		f := newFakeGoogle(t)
		f.setDelay(time.Second)
		c := newTestClient(t, f, 20*time.Millisecond)

		start := time.Now()
		_, err := c.ExchangeCode(context.Background(), "validcode", "v")
		if !errors.Is(err, provider.ErrExchangeFailed) {
			t.Fatalf("want ErrExchangeFailed, got %v", err)
		}
		if time.Since(start) > 500*time.Millisecond {
			t.Fatal("exchange was not bounded by the timeout")
		}
	})

	t.Run("provider down", func(t *testing.T) {
		f := newFakeGoogle(t)
		c := newTestClient(t, f, 0)
		f.Close()

		if _, err := c.ExchangeCode(context.Background(), "validcode", "v"); !errors.Is(err, provider.ErrExchangeFailed) {
			t.Fatalf("want ErrExchangeFailed, got %v", err)
		}
	})
}

func TestFetchProfileFailures(t *testing.T) {
	t.Run("rejected token", func(t *testing.T) {
		f := newFakeGoogle(t)
		c := newTestClient(t, f, 0)

		_, err := c.FetchProfile(context.Background(), &oauth2.Token{AccessToken: "wrong", TokenType: "Bearer"})
		if !errors.Is(err, provider.ErrProfileFetchFailed) {
			t.Fatalf("want ErrProfileFetchFailed, got %v", err)
		}
	})

	t.Run("missing email", func(t *testing.T) {
		f := newFakeGoogle(t)
		f.dropClaim("email")
		c := newTestClient(t, f, 0)

		_, err := c.FetchProfile(context.Background(), &oauth2.Token{AccessToken: "access-1", TokenType: "Bearer"})
		if !errors.Is(err, provider.ErrProfileFetchFailed) {
			t.Fatalf("want ErrProfileFetchFailed, got %v", err)
		}
	})

	t.Run("nil token", func(t *testing.T) {
		f := newFakeGoogle(t)
		c := newTestClient(t, f, 0)

		if _, err := c.FetchProfile(context.Background(), nil); !errors.Is(err, provider.ErrProfileFetchFailed) {
			t.Fatalf("want ErrProfileFetchFailed, got %v", err)
		}
	})
}
