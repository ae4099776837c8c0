// Package agent is a client for the remote dialogue agent that produces the
// interrogator replies.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const DefaultBaseURL = "http://localhost:8000"

// ErrEmptyReply is returned when the agent answered without any reply text.
var ErrEmptyReply = errors.New("agent reply has no text")

// StatusError is returned for any non-2xx answer from the agent.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("agent returned status %d", e.StatusCode)
}

// Reply is a single agent turn.
type Reply struct {
	Text    string
	Agent   string
	Emotion string
}

type Client struct {
	baseURL    string
	httpClient *http.Client

	failedCalls metric.Int64Counter
}

type ClientOption func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return "agent " + request.Method + " " + request.URL.Path
			}),
		)},
	}
	for _, opt := range opts {
		opt(c)
	}

	failedCalls, err := meter.Int64Counter("agent.chat.failures",
		metric.WithDescription("Number of agent chat calls that did not produce a reply"))
	if err != nil {
		logger.Warn("failed to create agent failure counter", "error", err)
	}
	c.failedCalls = failedCalls

	return c
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response *string `json:"response"`
	Text     *string `json:"text"`
	Agent    string  `json:"agent"`
	Emotion  string  `json:"emotion"`
}

// Chat sends one message on behalf of the session and returns the agent's
// reply. The "response" field takes precedence over "text".
func (c *Client) Chat(ctx context.Context, sessionID, message string) (Reply, error) {
	ctx, span := tracer.Start(ctx, "chat with agent")
	defer span.End()

	reply, err := c.chat(ctx, sessionID, message)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		if c.failedCalls != nil {
			c.failedCalls.Add(ctx, 1)
		}
		return Reply{}, err
	}

	span.SetAttributes(
		attribute.String("response.agent", reply.Agent),
		attribute.String("response.emotion", reply.Emotion),
	)
	return reply, nil
}

func (c *Client) chat(ctx context.Context, sessionID, message string) (Reply, error) {
	body, err := json.Marshal(chatRequest{Message: message, SessionID: sessionID})
	if err != nil {
		return Reply{}, fmt.Errorf("error marshalling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("error sending chat request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, fmt.Errorf("error reading chat response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Reply{}, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Reply{}, fmt.Errorf("error unmarshalling chat response: %w", err)
	}

	reply := Reply{Agent: parsed.Agent, Emotion: parsed.Emotion}
	switch {
	case parsed.Response != nil:
		reply.Text = *parsed.Response
	case parsed.Text != nil:
		reply.Text = *parsed.Text
	default:
		return Reply{}, ErrEmptyReply
	}

	return reply, nil
}
