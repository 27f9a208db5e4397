// Package gemini is a minimal HTTP client for the Google Generative Language
// API: one text-generation operation and one embedding operation. Callers in
// the search pipeline treat every failure here as a signal to fall back, so
// errors carry context but are never fatal upstream.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrNoAPIKey is returned when the client was built without a key. The
// pipeline degrades to the rule-based and keyword tiers in that case.
var ErrNoAPIKey = errors.New("gemini: api key not configured")

// Client communicates with the Generative Language API over HTTP.
type Client struct {
	apiKey          string
	baseURL         string
	generateModel   string
	embedModel      string
	generateTimeout time.Duration
	embedTimeout    time.Duration
	httpClient      *http.Client
}

// Options configures a Client. Zero fields fall back to sane defaults.
type Options struct {
	APIKey          string
	BaseURL         string
	GenerateModel   string
	EmbedModel      string
	GenerateTimeout time.Duration
	EmbedTimeout    time.Duration
}

// New creates a Client for the given options.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if opts.GenerateModel == "" {
		opts.GenerateModel = "gemini-2.5-flash"
	}
	if opts.EmbedModel == "" {
		opts.EmbedModel = "embedding-001"
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = 30 * time.Second
	}
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = 10 * time.Second
	}
	return &Client{
		apiKey:          opts.APIKey,
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		generateModel:   opts.GenerateModel,
		embedModel:      opts.EmbedModel,
		generateTimeout: opts.GenerateTimeout,
		embedTimeout:    opts.EmbedTimeout,
		httpClient:      &http.Client{},
	}
}

// Enabled reports whether the client has an API key and can make calls.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

// generateRequest is the JSON body for models/{model}:generateContent.
type generateRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"system_instruction,omitempty"`
}

// generateResponse mirrors the JSON returned by generateContent.
type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Generate sends a prompt (plus an optional system instruction) and returns
// the first candidate's text.
func (c *Client) Generate(ctx context.Context, prompt, systemInstruction string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	ctx, cancel := context.WithTimeout(ctx, c.generateTimeout)
	defer cancel()

	gr := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}
	if systemInstruction != "" {
		gr.SystemInstruction = &content{Parts: []part{{Text: systemInstruction}}}
	}

	body, err := json.Marshal(gr)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.generateModel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generate: unexpected status %d", resp.StatusCode)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding generate response: %w", err)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("generate: empty candidates")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

// embedRequest is the JSON body for models/{model}:embedContent.
type embedRequest struct {
	Content content `json:"content"`
}

// embedResponse mirrors the JSON returned by embedContent.
type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	ctx, cancel := context.WithTimeout(ctx, c.embedTimeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Content: content{Parts: []part{{Text: text}}}})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:embedContent", c.baseURL, c.embedModel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed: unexpected status %d", resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding embed response: %w", err)
	}

	if len(result.Embedding.Values) == 0 {
		return nil, fmt.Errorf("embed: empty embedding")
	}
	return result.Embedding.Values, nil
}
