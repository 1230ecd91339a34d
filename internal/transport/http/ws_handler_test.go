package http

import (
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketQuizFlow(t *testing.T) {
	server, _ := newTestServer(t)

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?userId=child_001"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readNext(conn, t, "connected")

	if err := conn.WriteJSON(map[string]any{"type": "generate", "payload": map[string]any{"topic": "saving"}}); err != nil {
		t.Fatalf("write generate: %v", err)
	}
	_, quiz := readNext(conn, t, "quiz")
	requestID, _ := quiz["request_id"].(string)
	if requestID == "" {
		t.Fatalf("expected request id in %v", quiz)
	}
	data, _ := quiz["data"].(map[string]any)
	answers := correctAnswers(t, data)

	submit := map[string]any{
		"type":    "submit",
		"payload": map[string]any{"request_id": requestID, "answers": answers, "time_taken_seconds": 42},
	}
	if err := conn.WriteJSON(submit); err != nil {
		t.Fatalf("write submit: %v", err)
	}

	var evaluation, leaderboard map[string]any
	for i := 0; i < 2; i++ {
		typ, payload := readNext(conn, t, "")
		switch typ {
		case "evaluation":
			evaluation = payload
		case "leaderboard":
			leaderboard = payload
		default:
			t.Fatalf("unexpected message %s: %v", typ, payload)
		}
	}
	if evaluation == nil || leaderboard == nil {
		t.Fatalf("expected evaluation and leaderboard, got evaluation=%v leaderboard=%v", evaluation, leaderboard)
	}
	summary, _ := evaluation["data"].(map[string]any)
	if summary["percentage"].(float64) != 100 {
		t.Fatalf("expected perfect score, got %v", summary["percentage"])
	}
	entries, _ := leaderboard["entries"].([]any)
	if len(entries) == 0 {
		t.Fatalf("expected leaderboard entries")
	}
	top := entries[0].(map[string]any)
	if top["user_id"] != "child_001" || top["rank"].(float64) != 1 {
		t.Fatalf("expected child_001 on top, got %v", top)
	}

	if err := conn.WriteJSON(submit); err != nil {
		t.Fatalf("write resubmit: %v", err)
	}
	_, failed := readNext(conn, t, "error")
	if failed["error_kind"] != "not_found" {
		t.Fatalf("expected not_found on resubmission, got %v", failed)
	}
}

func TestWebSocketRejectsUnknownMessage(t *testing.T) {
	server, _ := newTestServer(t)

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?userId=child_002"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readNext(conn, t, "connected")

	if err := conn.WriteJSON(map[string]any{"type": "dance"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, payload := readNext(conn, t, "error")
	if payload["kind"] != "validation_failure" {
		t.Fatalf("expected validation kind, got %v", payload)
	}

	if err := conn.WriteJSON(map[string]any{"type": "stats"}); err != nil {
		t.Fatalf("write stats: %v", err)
	}
	_, stats := readNext(conn, t, "stats")
	data, _ := stats["data"].(map[string]any)
	if data["name"] != "Sam" {
		t.Fatalf("expected stats for Sam, got %v", data)
	}
}

func TestWebSocketRequiresUser(t *testing.T) {
	server, _ := newTestServer(t)

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial to fail without userId")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Fatalf("expected 400 response, got %v", resp)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
