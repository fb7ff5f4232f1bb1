package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/wardroom-app/wardroom/internal/proto"
)

func dialChat(t *testing.T, env *testEnv, ctx context.Context, sessionToken string) *websocket.Conn {
	t.Helper()

	resp := env.doJSON(t, http.MethodGet, "/api/chat/token", sessionToken, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat token: unexpected status %d", resp.StatusCode)
	}
	var tokenResp ChatTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		t.Fatalf("decode chat token: %v", err)
	}

	wsURL := strings.Replace(env.ts.URL, "http", "ws", 1) + "/ws/chat?token=" + tokenResp.Token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial chat: %v", err)
	}
	return conn
}

func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) proto.Outbound {
	t.Helper()

	for {
		var out proto.Outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("read outbound waiting for %q: %v", event, err)
		}
		if out.Type == proto.OutboundTypeError {
			t.Fatalf("unexpected protocol error waiting for %q: %+v", event, out.Error)
		}
		if out.Event == event {
			return out
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t)

	resp, err := env.ts.Client().Get(env.ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketRejectsWithoutChatToken(t *testing.T) {
	env := startTestServer(t)

	resp, err := env.ts.Client().Get(env.ts.URL + "/ws/chat")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestWebSocketRejectsSessionToken(t *testing.T) {
	env := startTestServer(t)

	_, sessionToken := env.register(t, "founder", "password123")

	// A session token is not a chat token; the scoped audience must be enforced.
	resp, err := env.ts.Client().Get(env.ts.URL + "/ws/chat?token=" + sessionToken)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for session token, got %d", resp.StatusCode)
	}
}

func TestWebSocketRejectsRevokedApproval(t *testing.T) {
	env := startTestServer(t)

	founder, sessionToken := env.register(t, "founder", "password123")

	resp := env.doJSON(t, http.MethodGet, "/api/chat/token", sessionToken, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat token: unexpected status %d", resp.StatusCode)
	}
	var tokenResp ChatTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		t.Fatalf("decode chat token: %v", err)
	}

	// Revoke approval after the token was minted but before connecting. The
	// connect path must read the flag fresh rather than trust the token.
	if err := env.store.SetApproved(context.Background(), founder.ID, false); err != nil {
		t.Fatalf("revoke approval: %v", err)
	}

	wsResp, err := env.ts.Client().Get(env.ts.URL + "/ws/chat?token=" + tokenResp.Token)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer wsResp.Body.Close()
	if wsResp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for revoked approval, got %d", wsResp.StatusCode)
	}
}

func TestWebSocketJoinHistoryAndMessage(t *testing.T) {
	env := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice, aliceToken := env.register(t, "alice", "password123")

	// Seed one message over the HTTP send path.
	resp := env.doJSON(t, http.MethodPost, "/api/chat/rooms/1/messages", aliceToken, SendMessageRequest{Content: "welcome aboard"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("seed message: expected 201, got %d", resp.StatusCode)
	}

	conn := dialChat(t, env, ctx, aliceToken)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	joinPayload, _ := json.Marshal(proto.JoinData{RoomID: 1})
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeJoin, Data: joinPayload}); err != nil {
		t.Fatalf("send join: %v", err)
	}

	// History arrives upon joining.
	histOut := readEvent(t, ctx, conn, proto.EventHistory)
	var hist proto.HistoryData
	if err := json.Unmarshal(histOut.Data, &hist); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	if len(hist.Messages) != 1 || hist.Messages[0].Content != "welcome aboard" {
		t.Fatalf("unexpected history: %+v", hist.Messages)
	}

	// A live message over the socket is delivered in order.
	msgPayload, _ := json.Marshal(proto.MsgData{RoomID: 1, Content: "hi there"})
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeMsg, Data: msgPayload}); err != nil {
		t.Fatalf("send msg: %v", err)
	}

	msgOut := readEvent(t, ctx, conn, proto.EventMessage)
	var msg proto.MessageData
	if err := json.Unmarshal(msgOut.Data, &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	if msg.Content != "hi there" || msg.RoomID != 1 || msg.SenderID != alice.ID {
		t.Fatalf("unexpected message payload: %+v", msg)
	}
}

func TestWebSocketPresenceBroadcast(t *testing.T) {
	env := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, aliceToken := env.register(t, "alice", "password123")
	bob, bobToken := env.register(t, "bob", "password123")

	// Approve bob so he can obtain a chat token.
	resp := env.doJSON(t, http.MethodPost, "/api/users/"+itoa(bob.ID)+"/approve", aliceToken, ApproveRequest{Approved: true})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve bob: expected 200, got %d", resp.StatusCode)
	}

	aliceConn := dialChat(t, env, ctx, aliceToken)
	defer aliceConn.Close(websocket.StatusNormalClosure, "done")

	bobConn := dialChat(t, env, ctx, bobToken)

	// Alice observes bob coming online. Her own presence event may arrive
	// first, so scan until bob's shows up.
	var presence proto.PresenceData
	for {
		presenceOut := readEvent(t, ctx, aliceConn, proto.EventPresence)
		if err := json.Unmarshal(presenceOut.Data, &presence); err != nil {
			t.Fatalf("unmarshal presence: %v", err)
		}
		if presence.IdentityID == bob.ID {
			break
		}
	}
	if !presence.Online {
		t.Fatalf("expected bob online, got %+v", presence)
	}

	// And going offline again.
	bobConn.Close(websocket.StatusNormalClosure, "done")

	for {
		presenceOut := readEvent(t, ctx, aliceConn, proto.EventPresence)
		if err := json.Unmarshal(presenceOut.Data, &presence); err != nil {
			t.Fatalf("unmarshal presence: %v", err)
		}
		if presence.IdentityID == bob.ID && !presence.Online {
			return
		}
	}
}
