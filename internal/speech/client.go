package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// ConfidenceThreshold is the minimum word confidence kept verbatim
	ConfidenceThreshold = 0.6
	// UnclearMarker replaces words recognised below the threshold
	UnclearMarker = "[?]"

	defaultEndpoint = "https://speech.googleapis.com/v1/speech:recognize"
	cloudScope      = "https://www.googleapis.com/auth/cloud-platform"
	defaultTimeout  = 60 * time.Second
)

var (
	// ErrNoResults is returned when the API recognised nothing
	ErrNoResults = errors.New("no transcription results returned")
	// ErrEmptyTranscript is returned when every result was blank
	ErrEmptyTranscript = errors.New("transcription is empty")
)

// Config holds the settings for the recognize endpoint
type Config struct {
	CredentialsJSON string
	Endpoint        string
	Language        string
}

// Client transcribes WebM/Opus recordings with Google Speech-to-Text
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient replaces the OAuth2-authorised client, mostly for tests
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient builds a client. Without WithHTTPClient, service account
// credentials are required to authorise requests.
func NewClient(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	c := &Client{cfg: cfg}
	if c.cfg.Endpoint == "" {
		c.cfg.Endpoint = defaultEndpoint
	}
	if c.cfg.Language == "" {
		c.cfg.Language = "ja-JP"
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient != nil {
		return c, nil
	}

	if strings.TrimSpace(cfg.CredentialsJSON) == "" {
		return nil, errors.New("speech: GOOGLE_APPLICATION_CREDENTIALS_JSON is not set")
	}
	creds, err := google.CredentialsFromJSON(ctx, []byte(cfg.CredentialsJSON), cloudScope)
	if err != nil {
		return nil, fmt.Errorf("speech: failed to parse credentials: %w", err)
	}
	c.httpClient = oauth2.NewClient(ctx, creds.TokenSource)
	c.httpClient.Timeout = defaultTimeout
	return c, nil
}

type recognitionConfig struct {
	Encoding                   string `json:"encoding"`
	SampleRateHertz            int    `json:"sampleRateHertz"`
	LanguageCode               string `json:"languageCode"`
	Model                      string `json:"model"`
	EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
	EnableWordConfidence       bool   `json:"enableWordConfidence"`
}

type recognizeRequest struct {
	Config recognitionConfig `json:"config"`
	Audio  struct {
		Content string `json:"content"`
	} `json:"audio"`
}

type wordInfo struct {
	Word       string  `json:"word"`
	Confidence float64 `json:"confidence"`
}

type alternative struct {
	Transcript string     `json:"transcript"`
	Confidence float64    `json:"confidence"`
	Words      []wordInfo `json:"words"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []alternative `json:"alternatives"`
	} `json:"results"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Transcribe sends the recording and returns the transcript with
// low-confidence words masked.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("speech: audio is empty")
	}

	var payload recognizeRequest
	payload.Config = recognitionConfig{
		Encoding:                   "WEBM_OPUS",
		SampleRateHertz:            48000,
		LanguageCode:               c.cfg.Language,
		Model:                      "latest_long",
		EnableAutomaticPunctuation: true,
		EnableWordConfidence:       true,
	}
	payload.Audio.Content = base64.StdEncoding.EncodeToString(audio)

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("speech: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("speech: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("speech: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("speech: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("speech: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed recognizeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("speech: decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("speech: api error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Results) == 0 {
		return "", ErrNoResults
	}

	var sb strings.Builder
	for _, result := range parsed.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		sb.WriteString(maskAlternative(result.Alternatives[0]))
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}

// maskAlternative joins words without separators, which is how Japanese
// word segments come back.
func maskAlternative(alt alternative) string {
	if len(alt.Words) > 0 {
		var sb strings.Builder
		for _, w := range alt.Words {
			if w.Confidence < ConfidenceThreshold {
				sb.WriteString(UnclearMarker)
				continue
			}
			sb.WriteString(w.Word)
		}
		return sb.String()
	}
	if alt.Confidence < ConfidenceThreshold {
		return UnclearMarker
	}
	return alt.Transcript
}
