package http

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestRegisterAcceptsDisplayName(t *testing.T) {
	env := startTestServer(t)

	resp := env.doJSON(t, http.MethodPost, "/api/register", "", RegisterRequest{
		Username:    "founder",
		Password:    "password123",
		DisplayName: "The Founder",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}

	var auth AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if auth.User.DisplayName != "The Founder" {
		t.Fatalf("expected display name to be stored, got %q", auth.User.DisplayName)
	}
}

func TestRegisterDisplayNameDefaultsToUsername(t *testing.T) {
	env := startTestServer(t)

	ident, _ := env.register(t, "founder", "password123")
	if ident.DisplayName != "founder" {
		t.Fatalf("expected username fallback, got %q", ident.DisplayName)
	}
}
