package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-interrogation/core/speechtotext"
)

func newListenServer(t *testing.T, handle func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade: %v", err)
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestTranscribeDeliversAccumulatedTranscriptOnSpeechFinal(t *testing.T) {
	server := newListenServer(t, func(conn *websocket.Conn) {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"my na"}]}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"my name"}]}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"is John"}]}}`))
		_, _, _ = conn.ReadMessage()
	})

	client, err := NewTranscriptionClient("test-key", WithBaseURL(wsURL(server)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer client.Close()

	transcripts := make(chan string, 4)
	if err := client.Transcribe(context.Background(),
		speechtotext.WithTranscriptionCallback(func(transcript string) { transcripts <- transcript }),
	); err != nil {
		t.Fatalf("failed to start transcription: %v", err)
	}
	if err := client.SendAudio([]byte{0, 0, 0, 0}); err != nil {
		t.Fatalf("failed to send audio: %v", err)
	}

	select {
	case got := <-transcripts:
		if got != "my name is John" {
			t.Fatalf("expected accumulated transcript, got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for transcript")
	}
}

func TestTranscribeFlushesOnUtteranceEnd(t *testing.T) {
	server := newListenServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"SpeechStarted"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"hello"}]}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"UtteranceEnd"}`))
		_, _, _ = conn.ReadMessage()
	})

	client, err := NewTranscriptionClient("test-key", WithBaseURL(wsURL(server)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer client.Close()

	started := make(chan struct{}, 1)
	transcripts := make(chan string, 1)
	if err := client.Transcribe(context.Background(),
		speechtotext.WithSpeechStartedCallback(func() { started <- struct{}{} }),
		speechtotext.WithTranscriptionCallback(func(transcript string) { transcripts <- transcript }),
	); err != nil {
		t.Fatalf("failed to start transcription: %v", err)
	}

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for speech start")
	}
	select {
	case got := <-transcripts:
		if got != "hello" {
			t.Fatalf("expected %q, got %q", "hello", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for transcript")
	}
}

func TestTranscribeRejectedCredentials(t *testing.T) {
	server := newListenServer(t, func(conn *websocket.Conn) {})

	client, err := NewTranscriptionClient("wrong-key", WithBaseURL(wsURL(server)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = client.Transcribe(context.Background())
	if !errors.Is(err, speechtotext.ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestTranscribeUnreachable(t *testing.T) {
	server := newListenServer(t, func(conn *websocket.Conn) {})
	url := wsURL(server)
	server.Close()

	client, err := NewTranscriptionClient("test-key", WithBaseURL(url))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := client.Transcribe(context.Background()); !errors.Is(err, speechtotext.ErrUnreachable) {
		t.Fatalf("expected unreachable error, got %v", err)
	}
}

func TestTranscribeReportsDroppedConnection(t *testing.T) {
	server := newListenServer(t, func(conn *websocket.Conn) {
		_ = conn.UnderlyingConn().Close()
	})

	client, err := NewTranscriptionClient("test-key", WithBaseURL(wsURL(server)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	errs := make(chan error, 1)
	if err := client.Transcribe(context.Background(),
		speechtotext.WithErrorCallback(func(err error) { errs <- err }),
	); err != nil {
		t.Fatalf("failed to start transcription: %v", err)
	}

	select {
	case err := <-errs:
		if !errors.Is(err, speechtotext.ErrUnreachable) {
			t.Fatalf("expected unreachable error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for stream error")
	}
}

func TestNewTranscriptionClientRequiresKey(t *testing.T) {
	if _, err := NewTranscriptionClient(""); err == nil {
		t.Fatalf("expected error for empty api key")
	}
}
