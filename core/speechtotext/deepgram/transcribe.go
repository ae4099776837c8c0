// Package deepgram implements live speech-to-text on top of the Deepgram
// listen websocket API.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-interrogation/core/audio"
	"github.com/koscakluka/ema-interrogation/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultBaseURL    = "wss://api.deepgram.com"
	keepAliveInterval = 5 * time.Second
)

type TranscriptionClient struct {
	apiKey  string
	baseURL string
	dialer  *websocket.Dialer

	stream   *stream
	streamMu sync.Mutex
}

type ClientOption func(*TranscriptionClient)

// WithBaseURL points the client at a different websocket endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *TranscriptionClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func NewTranscriptionClient(apiKey string, opts ...ClientOption) (*TranscriptionClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not provided")
	}

	c := &TranscriptionClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		dialer:  websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type stream struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	closing   atomic.Bool

	options speechtotext.TranscriptionOptions

	accumulatedTranscript string
	unendedSegment        bool
	lastMsgTs             atomic.Int64
}

// Transcribe opens a new transcription stream, replacing any previous one.
func (c *TranscriptionClient) Transcribe(ctx context.Context, opts ...speechtotext.TranscriptionOption) error {
	ctx, span := tracer.Start(ctx, "open transcription stream")
	defer span.End()

	options := speechtotext.TranscriptionOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(&options)
	}

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("invalid encoding: %w", err)
	}

	conn, err := c.connectWebsocket(ctx, connectionOptions{
		sampleRate:        encoding.SampleRate,
		encoding:          encoding.Format,
		detectSpeechStart: options.SpeechStartedCallback != nil,
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return err
	}

	s := &stream{conn: conn, done: make(chan struct{}), options: options}
	s.lastMsgTs.Store(time.Now().UnixNano())

	c.streamMu.Lock()
	previous := c.stream
	c.stream = s
	c.streamMu.Unlock()
	if previous != nil {
		previous.close()
	}

	go c.readAndProcessMessages(s)
	go s.keepAlive(ctx)

	return nil
}

type connectionOptions struct {
	sampleRate        int
	encoding          string
	detectSpeechStart bool
}

func (c *TranscriptionClient) connectWebsocket(ctx context.Context, options connectionOptions) (*websocket.Conn, error) {
	listenURL, err := url.Parse(c.baseURL + "/v1/listen")
	if err != nil {
		return nil, fmt.Errorf("invalid deepgram url: %w", err)
	}
	queryParams := listenURL.Query()
	queryParams.Set("encoding", options.encoding)
	queryParams.Set("sample_rate", strconv.Itoa(options.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", "nova-3")
	queryParams.Set("language", "en-US")
	queryParams.Set("smart_format", "true")
	queryParams.Set("interim_results", "true")
	queryParams.Set("utterance_end_ms", "1000")
	queryParams.Set("endpointing", "300")
	queryParams.Set("vad_events", "true")
	listenURL.RawQuery = queryParams.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: deepgram returned %s", speechtotext.ErrUnauthorized, resp.Status)
		}
		return nil, fmt.Errorf("%w: failed to open socket connection to deepgram: %v", speechtotext.ErrUnreachable, err)
	}

	return conn, nil
}

func (c *TranscriptionClient) current() *stream {
	c.streamMu.Lock()
	defer c.streamMu.Unlock()
	return c.stream
}

func (c *TranscriptionClient) SendAudio(audio []byte) error {
	s := c.current()
	if s == nil {
		return fmt.Errorf("transcription stream not open")
	}

	s.lastMsgTs.Store(time.Now().UnixNano())
	if err := s.write(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to write to deepgram client: %w", err)
	}
	return nil
}

// StopStream asks Deepgram to finalize the stream. Remaining results may
// still arrive before the server closes the connection.
func (c *TranscriptionClient) StopStream() error {
	s := c.current()
	if s == nil {
		return nil
	}

	s.closing.Store(true)
	if err := s.writeJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return nil
}

// Close drops the current stream without waiting for final results.
func (c *TranscriptionClient) Close() {
	c.streamMu.Lock()
	s := c.stream
	c.stream = nil
	c.streamMu.Unlock()

	if s != nil {
		s.close()
	}
}

func (c *TranscriptionClient) readAndProcessMessages(s *stream) {
	defer func() {
		c.streamMu.Lock()
		if c.stream == s {
			c.stream = nil
		}
		c.streamMu.Unlock()
		s.close()
	}()

	for {
		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			if s.closing.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return
			}

			logger.Warn("failed to read deepgram websocket message", "error", err)
			if s.options.ErrorCallback != nil {
				s.options.ErrorCallback(fmt.Errorf("%w: %v", speechtotext.ErrUnreachable, err))
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			s.processMessage(msg)
		}
	}
}

func (s *stream) processMessage(msg []byte) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram results", "error", err)
			return
		}
		if !msgResp.IsFinal {
			return
		}

		if len(msgResp.Channel.Alternatives) > 0 {
			transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
			if len(transcript) > 0 {
				s.unendedSegment = true
				s.accumulatedTranscript += " " + transcript
				if s.options.PartialTranscriptionCallback != nil {
					s.options.PartialTranscriptionCallback(transcript)
				}
			}
		}
		if msgResp.SpeechFinal {
			s.onSpeechEnded()
		}

	case api.TypeUtteranceEndResponse:
		if s.unendedSegment {
			s.onSpeechEnded()
		}

	case api.TypeSpeechStartedResponse:
		s.unendedSegment = true
		if s.options.SpeechStartedCallback != nil {
			s.options.SpeechStartedCallback()
		}
	}
}

func (s *stream) onSpeechEnded() {
	s.unendedSegment = false
	fullTranscript := strings.TrimSpace(s.accumulatedTranscript)
	s.accumulatedTranscript = ""
	if len(fullTranscript) > 0 && s.options.TranscriptionCallback != nil {
		s.options.TranscriptionCallback(fullTranscript)
	}
}

func (s *stream) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			if time.Since(time.Unix(0, s.lastMsgTs.Load())) < keepAliveInterval {
				continue
			}
			if err := s.writeJSON(struct {
				Type string `json:"type"`
			}{Type: "KeepAlive"}); err != nil {
				logger.Debug("failed to send deepgram keep alive", "error", err)
			}
		}
	}
}

func (s *stream) write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

func (s *stream) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *stream) close() {
	s.closing.Store(true)
	s.closeOnce.Do(func() {
		close(s.done)
		if err := s.conn.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			logger.Debug("failed to close deepgram connection", "error", err)
		}
	})
}
