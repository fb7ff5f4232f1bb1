package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCurrentIdentityAbsentOnUnauthenticated(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid token"})
	}))
	defer ts.Close()

	c := NewREST(ts.URL)
	ident, err := c.CurrentIdentity(context.Background())
	if err != nil {
		t.Fatalf("401 must resolve to absent, not error: %v", err)
	}
	if ident != nil {
		t.Fatalf("expected absent identity, got %+v", ident)
	}
}

func TestCurrentIdentityPresent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(Identity{ID: 7, Username: "alice", Approved: true})
	}))
	defer ts.Close()

	c := NewREST(ts.URL)
	c.SetToken("tok")
	ident, err := c.CurrentIdentity(context.Background())
	if err != nil {
		t.Fatalf("current identity: %v", err)
	}
	if ident == nil || ident.ID != 7 || !ident.Approved {
		t.Fatalf("unexpected identity: %+v", ident)
	}
}

func TestRegisterSendsDisplayName(t *testing.T) {
	var body map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode register body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(AuthResult{Token: "t", User: Identity{ID: 1, DisplayName: body["display_name"]}})
	}))
	defer ts.Close()

	c := NewREST(ts.URL)
	res, err := c.Register(context.Background(), "alice", "password123", "Alice in Ops")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if body["display_name"] != "Alice in Ops" {
		t.Fatalf("display_name missing from payload: %v", body)
	}
	if res.User.DisplayName != "Alice in Ops" {
		t.Fatalf("unexpected display name in result: %q", res.User.DisplayName)
	}
}

func TestLoginStoresToken(t *testing.T) {
	var sawAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login":
			json.NewEncoder(w).Encode(AuthResult{Token: "session-token", User: Identity{ID: 1}})
		case "/api/user":
			sawAuth = r.Header.Get("Authorization")
			json.NewEncoder(w).Encode(Identity{ID: 1})
		}
	}))
	defer ts.Close()

	c := NewREST(ts.URL)
	res, err := c.Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token != "session-token" {
		t.Fatalf("unexpected token: %q", res.Token)
	}

	if _, err := c.CurrentIdentity(context.Background()); err != nil {
		t.Fatalf("current identity: %v", err)
	}
	if sawAuth != "Bearer session-token" {
		t.Fatalf("login token not attached, got %q", sawAuth)
	}
}

func TestChatTokenFreshPerCall(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]string{"token": "chat-token"})
	}))
	defer ts.Close()

	c := NewREST(ts.URL)
	c.SetToken("session")
	for i := 0; i < 3; i++ {
		if _, err := c.ChatToken(context.Background()); err != nil {
			t.Fatalf("chat token: %v", err)
		}
	}
	if calls != 3 {
		t.Fatalf("chat tokens must not be cached, got %d calls", calls)
	}
}

func TestErrorCodeMapping(t *testing.T) {
	status := http.StatusForbidden
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"error": "not approved"})
	}))
	defer ts.Close()

	c := NewREST(ts.URL)
	c.SetToken("session")

	_, err := c.ChatToken(context.Background())
	if CodeOf(err) != ErrorForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	status = http.StatusTooManyRequests
	_, err = c.Login(context.Background(), "a", "b")
	if CodeOf(err) != ErrorRateLimited {
		t.Fatalf("expected rate_limited, got %v", err)
	}
}
