package deepgram

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-interrogation/core/texttospeech"
)

func newSpeakServer(t *testing.T, handle func(r *http.Request, conn *websocket.Conn)) *httptest.Server {
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
		handle(r, conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestSynthesizeStreamsAudioUntilFlushed(t *testing.T) {
	models := make(chan string, 1)
	texts := make(chan string, 1)
	server := newSpeakServer(t, func(r *http.Request, conn *websocket.Conn) {
		models <- r.URL.Query().Get("model")

		var msg speakMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		texts <- msg.Text
		var flush controlMsg
		if err := conn.ReadJSON(&flush); err != nil || flush.Type != "Flush" {
			t.Errorf("expected flush, got %+v (%v)", flush, err)
			return
		}
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2})
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{3})
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Flushed","sequence_id":0}`))
		_, _, _ = conn.ReadMessage()
	})

	client, err := NewTextToSpeechClient("test-key", WithSpeakURL(wsURL(server)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	audio := make(chan []byte, 4)
	ended := make(chan struct{}, 1)
	_, err = client.Synthesize(context.Background(), "State your name.",
		texttospeech.WithVoice("aura-orion-en"),
		texttospeech.WithSpeechAudioCallback(func(b []byte) { audio <- b }),
		texttospeech.WithSpeechEndedCallback(func() { ended <- struct{}{} }),
	)
	if err != nil {
		t.Fatalf("failed to synthesize: %v", err)
	}

	if got := <-models; got != "aura-orion-en" {
		t.Fatalf("expected model %q, got %q", "aura-orion-en", got)
	}
	if got := <-texts; got != "State your name." {
		t.Fatalf("unexpected text %q", got)
	}

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for speech end")
	}

	received := []byte{}
	for len(audio) > 0 {
		received = append(received, <-audio...)
	}
	if !bytes.Equal(received, []byte{1, 2, 3}) {
		t.Fatalf("unexpected audio %v", received)
	}
}

func TestSynthesizeCancelSuppressesCallbacks(t *testing.T) {
	cleared := make(chan struct{}, 1)
	server := newSpeakServer(t, func(r *http.Request, conn *websocket.Conn) {
		for {
			var msg controlMsg
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Type == "Clear" {
				cleared <- struct{}{}
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"Flushed"}`))
			}
		}
	})

	client, err := NewTextToSpeechClient("test-key", WithSpeakURL(wsURL(server)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ended := make(chan struct{}, 1)
	failed := make(chan error, 1)
	speech, err := client.Synthesize(context.Background(), "hello",
		texttospeech.WithSpeechEndedCallback(func() { ended <- struct{}{} }),
		texttospeech.WithErrorCallback(func(err error) { failed <- err }),
	)
	if err != nil {
		t.Fatalf("failed to synthesize: %v", err)
	}

	if err := speech.Cancel(); err != nil {
		t.Fatalf("unexpected cancel error: %v", err)
	}
	if err := speech.Cancel(); err != nil {
		t.Fatalf("expected repeated cancel to be ignored, got %v", err)
	}

	select {
	case <-cleared:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for clear message")
	}

	select {
	case <-ended:
		t.Fatalf("expected no end callback after cancel")
	case err := <-failed:
		t.Fatalf("expected no error callback after cancel, got %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSynthesizeRejectedCredentials(t *testing.T) {
	server := newSpeakServer(t, func(r *http.Request, conn *websocket.Conn) {})

	client, err := NewTextToSpeechClient("wrong-key", WithSpeakURL(wsURL(server)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := client.Synthesize(context.Background(), "hello"); !errors.Is(err, texttospeech.ErrUnauthorized) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestSynthesizeReportsDroppedConnection(t *testing.T) {
	server := newSpeakServer(t, func(r *http.Request, conn *websocket.Conn) {
		var msg speakMsg
		_ = conn.ReadJSON(&msg)
		_ = conn.UnderlyingConn().Close()
	})

	client, err := NewTextToSpeechClient("test-key", WithSpeakURL(wsURL(server)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	failed := make(chan error, 1)
	if _, err := client.Synthesize(context.Background(), "hello",
		texttospeech.WithErrorCallback(func(err error) { failed <- err }),
	); err != nil {
		t.Fatalf("failed to synthesize: %v", err)
	}

	select {
	case err := <-failed:
		if !errors.Is(err, texttospeech.ErrUnreachable) {
			t.Fatalf("expected unreachable error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for error")
	}
}
