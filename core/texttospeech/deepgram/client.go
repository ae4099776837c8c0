// Package deepgram implements text-to-speech on top of the Deepgram Aura
// speak websocket API.
package deepgram

import (
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultSpeakURL = "wss://api.deepgram.com"
	defaultAPIURL   = "https://api.deepgram.com"
	DefaultVoice    = "aura-2-thalia-en"
)

type TextToSpeechClient struct {
	apiKey   string
	speakURL string
	apiURL   string

	httpClient *http.Client
}

type ClientOption func(*TextToSpeechClient)

// WithSpeakURL points synthesis at a different websocket endpoint.
func WithSpeakURL(speakURL string) ClientOption {
	return func(c *TextToSpeechClient) { c.speakURL = strings.TrimRight(speakURL, "/") }
}

// WithAPIURL points the voice listing at a different REST endpoint.
func WithAPIURL(apiURL string) ClientOption {
	return func(c *TextToSpeechClient) { c.apiURL = strings.TrimRight(apiURL, "/") }
}

func NewTextToSpeechClient(apiKey string, opts ...ClientOption) (*TextToSpeechClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepgram api key not provided")
	}

	c := &TextToSpeechClient{
		apiKey:   apiKey,
		speakURL: defaultSpeakURL,
		apiURL:   defaultAPIURL,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return "deepgram " + request.Method + " " + request.URL.Path
			}),
		)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}
