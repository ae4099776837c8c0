package groq

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/koscakluka/ema-interrogation/core/agent"
)

type capturedRequest struct {
	Authorization string
	Body          struct {
		Model          string    `json:"model"`
		Messages       []message `json:"messages"`
		ResponseFormat struct {
			Type       string `json:"type"`
			JSONSchema struct {
				Name   string         `json:"name"`
				Strict bool           `json:"strict"`
				Schema map[string]any `json:"schema"`
			} `json:"json_schema"`
		} `json:"response_format"`
	}
}

type completionServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []capturedRequest
	status   int
	content  string
}

func newCompletionServer(t *testing.T, content string) *completionServer {
	t.Helper()

	s := &completionServer{status: http.StatusOK, content: content}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var captured capturedRequest
		captured.Authorization = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured.Body); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		s.mu.Lock()
		s.requests = append(s.requests, captured)
		status, content := s.status, s.content
		s.mu.Unlock()

		if status != http.StatusOK {
			http.Error(w, "model overloaded", status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *completionServer) request(t *testing.T, i int) capturedRequest {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.requests) {
		t.Fatalf("expected at least %d requests, got %d", i+1, len(s.requests))
	}
	return s.requests[i]
}

func (s *completionServer) set(status int, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status, s.content = status, content
}

func newTestRoom(t *testing.T, server *completionServer, roll float64, opts ...RoomOption) *Room {
	t.Helper()

	room, err := NewRoom("gsk-test", append([]RoomOption{WithURL(server.URL)}, opts...)...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	room.roll = func() float64 { return roll }
	room.pick = func(int) int { return 0 }
	return room
}

func TestChatAsksForStructuredLine(t *testing.T) {
	server := newCompletionServer(t, `{"response":"Name?"}`)
	room := newTestRoom(t, server, 0.9)

	reply, err := room.Chat(context.Background(), "case-42", "John Smith")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != (agent.Reply{Text: "Name?", Agent: Reynolds, Emotion: "stern"}) {
		t.Fatalf("unexpected reply %+v", reply)
	}

	request := server.request(t, 0)
	if request.Authorization != "Bearer gsk-test" || request.Body.Model != DefaultModel {
		t.Fatalf("unexpected request headers or model: %q %q", request.Authorization, request.Body.Model)
	}
	messages := request.Body.Messages
	if len(messages) != 2 || messages[0].Role != messageRoleSystem || !strings.Contains(messages[0].Content, "Detective James Reynolds") {
		t.Fatalf("expected Reynolds instructions, got %+v", messages)
	}
	if messages[1] != (message{Role: messageRoleUser, Content: "John Smith"}) {
		t.Fatalf("expected witness message last, got %+v", messages[1])
	}

	format := request.Body.ResponseFormat
	if format.Type != "json_schema" || !format.JSONSchema.Strict {
		t.Fatalf("expected strict json schema response format, got %+v", format)
	}
	properties, _ := format.JSONSchema.Schema["properties"].(map[string]any)
	if _, ok := properties["response"]; !ok {
		t.Fatalf("expected schema to describe response, got %v", format.JSONSchema.Schema)
	}
}

func TestChatKeepsLabelledHistory(t *testing.T) {
	server := newCompletionServer(t, `{"response":"Name?"}`)
	room := newTestRoom(t, server, 0.9, WithHistoryLimit(2))

	for _, answer := range []string{"John", "John Smith", "I was home"} {
		if _, err := room.Chat(context.Background(), "case-42", answer); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	messages := server.request(t, 1).Body.Messages
	expected := []message{
		{Role: messageRoleUser, Content: "John"},
		{Role: messageRoleAssistant, Content: "[Reynolds]: Name?"},
		{Role: messageRoleUser, Content: "John Smith"},
	}
	if len(messages) != 4 {
		t.Fatalf("expected system prompt and three messages, got %+v", messages)
	}
	for i, msg := range expected {
		if messages[i+1] != msg {
			t.Fatalf("message %d: expected %+v, got %+v", i, msg, messages[i+1])
		}
	}

	if limited := server.request(t, 2).Body.Messages; len(limited) != 4 || limited[1].Content != "John Smith" {
		t.Fatalf("expected history to be limited to two turns, got %+v", limited)
	}

	if other := func() []message {
		if _, err := room.Chat(context.Background(), "case-7", "Hello"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return server.request(t, 3).Body.Messages
	}(); len(other) != 2 {
		t.Fatalf("expected sessions to be kept apart, got %+v", other)
	}
}

func TestSilenceUsesStrategy(t *testing.T) {
	server := newCompletionServer(t, "```json\n{\"response\":\"Take a breath.\"}\n```")
	room := newTestRoom(t, server, 0.1)

	reply, err := room.Chat(context.Background(), "case-42", "[SILENCE]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Agent != Chen || reply.Emotion != "supportive" || reply.Text != "Take a breath." {
		t.Fatalf("unexpected reply %+v", reply)
	}

	instructions := server.request(t, 0).Body.Messages[0].Content
	if !strings.Contains(instructions, "Detective Sarah Chen") || !strings.Contains(instructions, silenceStrategies[Chen][0]) {
		t.Fatalf("expected Chen silence instructions, got %q", instructions)
	}
}

func TestFailedCompletionLeavesHistoryUntouched(t *testing.T) {
	server := newCompletionServer(t, `{"response":"Name?"}`)
	server.set(http.StatusServiceUnavailable, "")
	room := newTestRoom(t, server, 0.9)

	_, err := room.Chat(context.Background(), "case-42", "John")
	var statusErr *agent.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected status error, got %v", err)
	}

	server.set(http.StatusOK, `{"response":"Name?"}`)
	if _, err := room.Chat(context.Background(), "case-42", "John"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if messages := server.request(t, 1).Body.Messages; len(messages) != 2 {
		t.Fatalf("expected no history from the failed call, got %+v", messages)
	}
}

func TestEmptyLineIsAnError(t *testing.T) {
	server := newCompletionServer(t, `{"response":"  "}`)
	room := newTestRoom(t, server, 0.9)

	if _, err := room.Chat(context.Background(), "case-42", "John"); !errors.Is(err, agent.ErrEmptyReply) {
		t.Fatalf("expected ErrEmptyReply, got %v", err)
	}
}

func TestNextSpeaker(t *testing.T) {
	testCases := []struct {
		name     string
		last     string
		silence  bool
		roll     float64
		expected string
	}{
		{name: "silence pressure", last: Chen, silence: true, roll: 0.25, expected: Reynolds},
		{name: "silence relief", last: Reynolds, silence: true, roll: 0.2, expected: Chen},
		{name: "reynolds keeps pressing", last: Reynolds, roll: 0.31, expected: Reynolds},
		{name: "chen interjects", last: Reynolds, roll: 0.3, expected: Chen},
		{name: "chen hands back", last: Chen, roll: 0.16, expected: Reynolds},
		{name: "chen continues", last: Chen, roll: 0.1, expected: Chen},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if speaker := nextSpeaker(testCase.last, testCase.silence, testCase.roll); speaker != testCase.expected {
				t.Fatalf("expected %s, got %s", testCase.expected, speaker)
			}
		})
	}
}

func TestNewRoomRequiresAPIKey(t *testing.T) {
	if _, err := NewRoom(""); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}
