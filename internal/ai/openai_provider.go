// file: internal/ai/openai_provider.go
// version: 2.0.0
// guid: 9a0b1c2d-3e4f-5a6b-7c8d-9e0f1a2b3c4d

package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/walsoup/MusicMetadataFetcher/internal/models"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini" // Fast and cost-effective

const maxCleanedLength = 100

var (
	// ErrProviderDisabled is returned by every call on a disabled provider.
	ErrProviderDisabled = errors.New("OpenAI provider is not enabled")
	// ErrUnusableAnswer is returned when a cleanup answer is empty or too long.
	ErrUnusableAnswer = errors.New("unusable cleanup answer")
)

// Config configures the OpenAI provider.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	// MaxRetries is the number of attempts for enrichment. Default 2.
	MaxRetries int
}

// OpenAIProvider cleans noisy filenames and estimates audio attributes
// with an OpenAI chat model.
type OpenAIProvider struct {
	client     *openai.Client
	model      string
	maxRetries int
	retryDelay time.Duration
	enabled    bool
}

// NewOpenAIProvider creates a provider. Without an API key the provider is
// disabled.
func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	if cfg.APIKey == "" {
		return &OpenAIProvider{enabled: false}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Attempts are counted here, not by the SDK.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 2
	}

	return &OpenAIProvider{
		client:     &client,
		model:      model,
		maxRetries: retries,
		retryDelay: time.Second,
		enabled:    true,
	}
}

// IsEnabled returns whether the provider is enabled
func (p *OpenAIProvider) IsEnabled() bool {
	return p != nil && p.enabled
}

// CleanFilename asks the model for a search-ready version of a noisy
// filename stem. Answers that are empty or longer than 100 characters are
// rejected with ErrUnusableAnswer.
func (p *OpenAIProvider) CleanFilename(ctx context.Context, stem string) (string, error) {
	if !p.IsEnabled() {
		return "", ErrProviderDisabled
	}

	systemPrompt := `You clean up music filenames for a catalog search query.
Remove track numbers, version info, site tags and upload boilerplate, and fix obvious typos.
Keep the artist and the title. If both are present, format them as "Artist - Title".
Return only the cleaned text, nothing else.`

	userPrompt := fmt.Sprintf("Filename: %q\n\nCleaned:", stem)

	content, err := p.complete(ctx, systemPrompt, userPrompt, false, 100)
	if err != nil {
		return "", err
	}

	cleaned := strings.Trim(strings.TrimSpace(content), "\"'`")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" || utf8.RuneCountInString(cleaned) > maxCleanedLength {
		return "", fmt.Errorf("%w: %q", ErrUnusableAnswer, content)
	}
	return cleaned, nil
}

// enrichmentResponse mirrors the JSON the model is asked for. Numbers may
// come back as floats.
type enrichmentResponse struct {
	BPM          float64 `json:"bpm"`
	Key          string  `json:"key"`
	Mood         string  `json:"mood"`
	Danceability float64 `json:"danceability"`
	Popularity   float64 `json:"popularity"`
}

// Enrich estimates tempo, key, mood, danceability and popularity for a
// track. Two attempts are made with a short pause between them.
func (p *OpenAIProvider) Enrich(ctx context.Context, artist, title string) (*models.Enrichment, error) {
	if !p.IsEnabled() {
		return nil, ErrProviderDisabled
	}

	systemPrompt := `You are a music analysis expert. Return ONLY a valid JSON object with these fields:
{
  "bpm": <integer>,
  "key": "<e.g., C#m>",
  "mood": "<e.g., Energetic, Hopeful, Melancholic>",
  "danceability": <integer from 0-10>,
  "popularity": <integer from 0-10>
}`
	userPrompt := fmt.Sprintf("Analyze the song %q by %q.", title, artist)

	var lastErr error
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		content, err := p.complete(ctx, systemPrompt, userPrompt, true, 500)
		if err == nil {
			var resp enrichmentResponse
			if err = json.Unmarshal([]byte(stripCodeFence(content)), &resp); err == nil {
				return toEnrichment(resp), nil
			}
			err = fmt.Errorf("failed to parse OpenAI response: %w", err)
		}
		lastErr = err

		if attempt < p.maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.retryDelay):
			}
		}
	}
	return nil, lastErr
}

func (p *OpenAIProvider) complete(ctx context.Context, systemPrompt, userPrompt string, jsonMode bool, maxTokens int64) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Model:       shared.ChatModel(p.model),
		Temperature: param.NewOpt(0.1),
		MaxTokens:   param.NewOpt(maxTokens),
	}
	if jsonMode {
		jsonObjectFormat := shared.NewResponseFormatJSONObjectParam()
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &jsonObjectFormat,
		}
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}
	return completion.Choices[0].Message.Content, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func toEnrichment(r enrichmentResponse) *models.Enrichment {
	return &models.Enrichment{
		BPM:          clampInt(r.BPM, 0, 400),
		Key:          strings.TrimSpace(r.Key),
		Mood:         strings.TrimSpace(r.Mood),
		Danceability: clampInt(r.Danceability, 0, 10),
		Popularity:   clampInt(r.Popularity, 0, 10),
	}
}

func clampInt(v float64, lo, hi int) int {
	n := int(v + 0.5)
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
