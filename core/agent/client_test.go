package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChatSendsMessageAndSession(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"Where were you?","agent":"Reynolds","emotion":"stern"}`))
	}))
	defer server.Close()

	reply, err := NewClient(server.URL).Chat(context.Background(), "session-1", "John Smith")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Message != "John Smith" || got.SessionID != "session-1" {
		t.Fatalf("unexpected request body: %+v", got)
	}
	if reply.Text != "Where were you?" || reply.Agent != "Reynolds" || reply.Emotion != "stern" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestChatReplyFieldPrecedence(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		expected string
		err      error
	}{
		{name: "response wins", body: `{"response":"a","text":"b","agent":"X"}`, expected: "a"},
		{name: "text fallback", body: `{"text":"b","agent":"X"}`, expected: "b"},
		{name: "empty response is still a response", body: `{"response":"","text":"b"}`, expected: ""},
		{name: "neither", body: `{"agent":"X","emotion":"calm"}`, err: ErrEmptyReply},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(testCase.body))
			}))
			defer server.Close()

			reply, err := NewClient(server.URL).Chat(context.Background(), "s", "m")
			if testCase.err != nil {
				if !errors.Is(err, testCase.err) {
					t.Fatalf("expected error %v, got %v", testCase.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if reply.Text != testCase.expected {
				t.Fatalf("expected text %q, got %q", testCase.expected, reply.Text)
			}
		})
	}
}

func TestChatNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Chat(context.Background(), "s", "m")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected status error, got %v", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", statusErr.StatusCode)
	}
}

func TestChatMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	if _, err := NewClient(server.URL).Chat(context.Background(), "s", "m"); err == nil {
		t.Fatalf("expected error for malformed body")
	}
}

func TestChatTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	if _, err := NewClient(url).Chat(context.Background(), "s", "m"); err == nil {
		t.Fatalf("expected error when the agent is unreachable")
	}
}

func TestNewClientDefaultsBaseURL(t *testing.T) {
	if got := NewClient("").baseURL; got != DefaultBaseURL {
		t.Fatalf("expected base url %q, got %q", DefaultBaseURL, got)
	}
	if got := NewClient("http://example.test/").baseURL; got != "http://example.test" {
		t.Fatalf("expected trailing slash trimmed, got %q", got)
	}
}
