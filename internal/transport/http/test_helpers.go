package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/wardroom-app/wardroom/internal/auth"
	"github.com/wardroom-app/wardroom/internal/config"
	"github.com/wardroom-app/wardroom/internal/core"
	"github.com/wardroom-app/wardroom/internal/store"
	"github.com/wardroom-app/wardroom/internal/store/sqlite"
)

type testEnv struct {
	ts          *httptest.Server
	store       store.Store
	authService *auth.Service
	hub         *core.Hub
}

// startTestServer boots a full server over an in-memory store.
func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &auth.JWTConfig{
		Secret:     []byte("test-secret"),
		Issuer:     "test",
		SessionTTL: time.Hour,
		ChatTTL:    time.Minute,
	}
	authService := auth.NewService(st, jwtConfig)

	disabledLogger := zerolog.Nop()

	hub := core.NewHub(st, &disabledLogger, 50)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWTSecret = "test-secret"

	server := NewServer(hub, authService, st, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, authService: authService, hub: hub}
}

// register creates an identity through the API and returns its session token.
// The first registration bootstraps an approved superadmin.
func (e *testEnv) register(t *testing.T, username, password string) (*store.Identity, string) {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := e.ts.Client().Post(e.ts.URL+"/api/register", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("register request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %q: unexpected status %d", username, resp.StatusCode)
	}

	var auth AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		t.Fatalf("decode register response: %v", err)
	}

	ident, err := e.store.GetIdentityByID(context.Background(), auth.User.ID)
	if err != nil {
		t.Fatalf("load registered identity: %v", err)
	}
	return ident, auth.Token
}

// loginAs logs in through the API and returns the identity and session token.
func loginAs(t *testing.T, env *testEnv, username, password string) (*store.Identity, string) {
	t.Helper()

	resp := env.doJSON(t, http.MethodPost, "/api/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %q: unexpected status %d", username, resp.StatusCode)
	}

	var auth AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		t.Fatalf("decode login response: %v", err)
	}

	ident, err := env.store.GetIdentityByID(context.Background(), auth.User.ID)
	if err != nil {
		t.Fatalf("load identity: %v", err)
	}
	return ident, auth.Token
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

// doJSON issues a request with optional bearer token and JSON body.
func (e *testEnv) doJSON(t *testing.T, method, path, token string, payload any) *http.Response {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}
