package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-interrogation/core/audio"
	"github.com/koscakluka/ema-interrogation/core/texttospeech"
)

type speech struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	options texttospeech.TextToSpeechOptions

	cancelled atomic.Bool
	finished  atomic.Bool
	closeOnce sync.Once
}

// Synthesize opens a speak stream for text. Audio is delivered through the
// audio callback and the end of speech through the ended callback.
func (c *TextToSpeechClient) Synthesize(ctx context.Context, text string, opts ...texttospeech.TextToSpeechOption) (texttospeech.Speech, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()

	s := &speech{
		options: texttospeech.TextToSpeechOptions{
			Voice:               DefaultVoice,
			SpeechAudioCallback: func([]byte) {},
			SpeechEndedCallback: func() {},
			ErrorCallback:       func(error) {},
			EncodingInfo:        audio.GetDefaultEncodingInfo(),
		},
	}
	for _, opt := range opts {
		opt(&s.options)
	}
	if s.options.Voice == "" {
		s.options.Voice = DefaultVoice
	}

	var err error
	if s.ws, err = c.connectWebsocket(ctx, s.options.Voice, s.options.EncodingInfo); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := s.writeJSON(speakMsg{Type: "Speak", Text: text}); err != nil {
		s.close()
		span.RecordError(err)
		return nil, fmt.Errorf("%w: failed to send text: %v", texttospeech.ErrUnreachable, err)
	}
	if err := s.writeJSON(controlMsg{Type: "Flush"}); err != nil {
		s.close()
		span.RecordError(err)
		return nil, fmt.Errorf("%w: failed to flush text: %v", texttospeech.ErrUnreachable, err)
	}

	go s.processIncomingMessages()

	return s, nil
}

func (c *TextToSpeechClient) connectWebsocket(ctx context.Context, voice string, encodingInfo audio.EncodingInfo) (*websocket.Conn, error) {
	speakURL, err := url.Parse(c.speakURL + "/v1/speak")
	if err != nil {
		return nil, fmt.Errorf("invalid deepgram url: %w", err)
	}
	urlValues := url.Values{}
	urlValues.Set("encoding", encodingInfo.Format.Name())
	urlValues.Set("sample_rate", strconv.Itoa(encodingInfo.SampleRate))
	urlValues.Set("model", voice)
	speakURL.RawQuery = urlValues.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, speakURL.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: deepgram returned %s", texttospeech.ErrUnauthorized, resp.Status)
		}
		return nil, fmt.Errorf("%w: failed to open socket connection to deepgram: %v", texttospeech.ErrUnreachable, err)
	}

	return conn, nil
}

type speakMsg struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type controlMsg struct {
	Type string `json:"type"`
}

func (s *speech) processIncomingMessages() {
	defer s.close()

	for {
		msgType, msg, err := s.ws.ReadMessage()
		if err != nil {
			if s.cancelled.Load() || s.finished.Load() {
				return
			}
			logger.Warn("deepgram speak websocket read failed", "error", err)
			s.options.ErrorCallback(fmt.Errorf("%w: %v", texttospeech.ErrUnreachable, err))
			return
		}
		if s.cancelled.Load() {
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			s.options.SpeechAudioCallback(msg)
		case websocket.TextMessage:
			var parsedMsg struct {
				Type        string `json:"type"`
				Description string `json:"description"`
			}
			if err := json.Unmarshal(msg, &parsedMsg); err != nil {
				logger.Debug("failed to unmarshal deepgram message", "error", err)
				continue
			}

			switch parsedMsg.Type {
			case "Flushed":
				s.finished.Store(true)
				_ = s.writeJSON(controlMsg{Type: "Close"})
				s.options.SpeechEndedCallback()
				return
			case "Error":
				s.finished.Store(true)
				s.options.ErrorCallback(errors.New("deepgram speak error: " + parsedMsg.Description))
				return
			}
		}
	}
}

func (s *speech) Cancel() error {
	if !s.cancelled.CompareAndSwap(false, true) {
		return nil
	}
	if s.finished.Load() {
		s.close()
		return nil
	}

	err := s.writeJSON(controlMsg{Type: "Clear"})
	s.close()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("failed to clear deepgram speech: %w", err)
	}
	return nil
}

func (s *speech) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.ws.WriteJSON(v)
}

func (s *speech) close() {
	s.closeOnce.Do(func() {
		_ = s.ws.Close()
	})
}
