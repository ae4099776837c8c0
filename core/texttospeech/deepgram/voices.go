package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/koscakluka/ema-interrogation/core/texttospeech"
)

type modelsResponse struct {
	TTS []struct {
		Name          string   `json:"name"`
		CanonicalName string   `json:"canonical_name"`
		Architecture  string   `json:"architecture"`
		Languages     []string `json:"languages"`
		Metadata      struct {
			Accent string   `json:"accent"`
			Tags   []string `json:"tags"`
		} `json:"metadata"`
	} `json:"tts"`
}

// ListVoices returns the Aura voices offered for the account.
func (c *TextToSpeechClient) ListVoices(ctx context.Context) ([]texttospeech.Voice, error) {
	ctx, span := tracer.Start(ctx, "list deepgram voices")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/v1/models", nil)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", texttospeech.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		err := fmt.Errorf("%w: deepgram returned %s", texttospeech.ErrUnauthorized, resp.Status)
		span.RecordError(err)
		return nil, err
	case resp.StatusCode != http.StatusOK:
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		span.RecordError(err)
		return nil, err
	}

	var models modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error unmarshalling models response: %w", err)
	}

	voices := make([]texttospeech.Voice, 0, len(models.TTS))
	for _, model := range models.TTS {
		if model.CanonicalName == "" {
			continue
		}

		voice := texttospeech.Voice{ID: model.CanonicalName, Gender: genderFromTags(model.Metadata.Tags)}
		if len(model.Languages) > 0 {
			voice.Language = model.Languages[0]
		}
		voice.Name = voiceName(model.Name, voice.Gender, voice.Language)
		voices = append(voices, voice)
	}

	return voices, nil
}

func genderFromTags(tags []string) string {
	switch {
	case slices.Contains(tags, "masculine"):
		return "Male"
	case slices.Contains(tags, "feminine"):
		return "Female"
	}
	return ""
}

func voiceName(name, gender, language string) string {
	if name == "" {
		return ""
	}
	label := strings.ToUpper(name[:1]) + name[1:]

	details := []string{}
	if gender != "" {
		details = append(details, gender)
	}
	if language != "" {
		details = append(details, language)
	}
	if len(details) == 0 {
		return label
	}
	return label + " (" + strings.Join(details, ", ") + ")"
}
