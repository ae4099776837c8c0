// Package groq plays the interrogation room locally: two detectives voiced
// by a Groq hosted model take turns questioning the witness.
package groq

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"

	"github.com/jinzhu/copier"
	"github.com/koscakluka/ema-interrogation/core/agent"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	DefaultURL   = "https://api.groq.com/openai/v1/chat/completions"
	DefaultModel = "openai/gpt-oss-20b"

	// DefaultHistoryLimit is how many past turns are sent with each prompt.
	DefaultHistoryLimit = 10

	silenceMessage = "[SILENCE]"
)

var ErrMissingAPIKey = errors.New("groq api key is required")

type turn struct {
	Role    string
	Content string
}

type session struct {
	mu        sync.Mutex
	history   []turn
	lastAgent string
}

// Room answers the witness on behalf of the detectives. It keeps one
// conversation history per session id in memory.
type Room struct {
	apiKey       string
	model        string
	url          string
	historyLimit int
	httpClient   *http.Client

	roll func() float64
	pick func(n int) int

	sessions   map[string]*session
	sessionsMu sync.Mutex

	speakerTurns metric.Int64Counter
}

type RoomOption func(*Room)

func WithModel(model string) RoomOption {
	return func(r *Room) {
		if model != "" {
			r.model = model
		}
	}
}

func WithURL(url string) RoomOption {
	return func(r *Room) {
		if url != "" {
			r.url = url
		}
	}
}

func WithHistoryLimit(limit int) RoomOption {
	return func(r *Room) {
		if limit > 0 {
			r.historyLimit = limit
		}
	}
}

func WithHTTPClient(httpClient *http.Client) RoomOption {
	return func(r *Room) {
		if httpClient != nil {
			r.httpClient = httpClient
		}
	}
}

func NewRoom(apiKey string, opts ...RoomOption) (*Room, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	r := &Room{
		apiKey:       apiKey,
		model:        DefaultModel,
		url:          DefaultURL,
		historyLimit: DefaultHistoryLimit,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return "groq " + r.Method
			}),
		)},
		roll:     rand.Float64,
		pick:     rand.IntN,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(r)
	}

	var err error
	r.speakerTurns, err = meter.Int64Counter("agent.groq.speaker_turns",
		metric.WithDescription("Lines spoken per detective"))
	if err != nil {
		logger.Warn("failed to create speaker turn counter", "error", err)
	}

	return r, nil
}

func (r *Room) session(id string) *session {
	r.sessionsMu.Lock()
	defer r.sessionsMu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		s = &session{lastAgent: Reynolds}
		r.sessions[id] = s
	}
	return s
}

// Chat answers input in the conversation identified by sessionID. The
// exchange is added to the session history only when the model answers.
func (r *Room) Chat(ctx context.Context, sessionID, input string) (agent.Reply, error) {
	ctx, span := tracer.Start(ctx, "interrogation room turn")
	defer span.End()

	s := r.session(sessionID)
	s.mu.Lock()
	defer s.mu.Unlock()

	silence := strings.TrimSpace(input) == silenceMessage
	speaker := nextSpeaker(s.lastAgent, silence, r.roll())
	span.SetAttributes(
		attribute.String("speaker", speaker),
		attribute.Bool("silence", silence),
	)

	strategy := ""
	if silence {
		strategies := silenceStrategies[speaker]
		strategy = strategies[r.pick(len(strategies))]
	}

	current := turn{Role: messageRoleUser, Content: input}
	history := s.history
	if len(history) > r.historyLimit {
		history = history[len(history)-r.historyLimit:]
	}

	var messages []message
	if err := copier.Copy(&messages, append(history[:len(history):len(history)], current)); err != nil {
		err = fmt.Errorf("copying history: %w", err)
		span.RecordError(err)
		return agent.Reply{}, err
	}
	messages = append([]message{{Role: messageRoleSystem, Content: instructionsFor(speaker, strategy)}}, messages...)

	text, err := r.complete(ctx, messages)
	if err != nil {
		span.RecordError(err)
		return agent.Reply{}, err
	}

	s.history = append(s.history, current, turn{
		Role:    messageRoleAssistant,
		Content: fmt.Sprintf("[%s]: %s", speaker, text),
	})
	s.lastAgent = speaker
	if r.speakerTurns != nil {
		r.speakerTurns.Add(ctx, 1, metric.WithAttributes(attribute.String("speaker", speaker)))
	}
	logger.Debug("detective replied", "session_id", sessionID, "speaker", speaker, "silence", silence)

	return agent.Reply{Text: text, Agent: speaker, Emotion: emotionFor(speaker)}, nil
}
