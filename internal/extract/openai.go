package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/project-tktt/go-sublets/internal/domain"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const systemPrompt = `You are a rental listing parser for short-term sublet posts scraped from social media groups. Posts are free text in Hebrew or English. Extract structured fields and return ONLY a JSON object with this shape, using null for any field you cannot determine:
{
  "price": {"amount": number|null, "currency": string|null, "period": "month"|"week"|"night"|null, "utilities_included": boolean|null},
  "location": {"country": string|null, "country_code": string|null, "city": string|null, "neighborhood": string|null, "street": string|null, "full_address": string|null, "confidence": "low"|"medium"|"high"},
  "dates": {"start_date": "DD.MM"|null, "end_date": "DD.MM"|null, "is_flexible": boolean|null, "duration_text": string|null, "immediate_availability": boolean|null, "confidence": "low"|"medium"|"high"},
  "rooms": {"total_rooms": number|null, "bedrooms": number|null, "bathrooms": number|null, "is_studio": boolean|null, "floor": number|null, "total_floors": number|null},
  "type": "entire_place"|"roommate"|"studio"|null,
  "amenities": {"furnished": boolean, "balcony": boolean, "parking": boolean, "elevator": boolean, "air_conditioning": boolean, "pets_allowed": boolean}
}
Include an amenity key only when the post states it. Never invent values.`

// AIExtractor calls a chat-completion model to extract structured fields.
// A minimum delay between consecutive calls is enforced to respect the
// provider's rate limit; callers treat any error as a soft failure and
// fall through to the heuristic extractor.
type AIExtractor struct {
	client     *openai.Client
	model      string
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
}

// NewAIExtractor creates the AI extraction strategy. A missing API key
// is a configuration failure and is surfaced immediately.
func NewAIExtractor(apiKey, model string, minDelay, timeout time.Duration) (*AIExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ai extractor: missing API key")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	if minDelay <= 0 {
		minDelay = time.Second
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AIExtractor{
		client:     openai.NewClient(apiKey),
		model:      model,
		limiter:    rate.NewLimiter(rate.Every(minDelay), 1),
		timeout:    timeout,
		maxRetries: 2,
	}, nil
}

func (e *AIExtractor) Name() string { return "openai" }

// Extract requests structured fields for one post. Blocks on the rate
// limiter before each attempt.
func (e *AIExtractor) Extract(ctx context.Context, text, groupHint string) (*Result, error) {
	user := text
	if groupHint != "" {
		user = "Group: " + groupHint + "\n\n" + text
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		resp, err := e.client.CreateChatCompletion(attemptCtx, openai.ChatCompletionRequest{
			Model: e.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			Temperature: 0.1,
		})
		cancel()

		if err != nil {
			lastErr = fmt.Errorf("chat completion: %w", err)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("chat completion: empty response")
			continue
		}

		fields, err := parseModelResponse(resp.Choices[0].Message.Content)
		if err != nil {
			lastErr = err
			continue
		}
		return &Result{Fields: fields}, nil
	}

	return nil, lastErr
}

// parseModelResponse extracts the JSON object from a model reply, which
// may be wrapped in prose or a code fence.
func parseModelResponse(content string) (*domain.ExtractedFields, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("parse model response: no JSON object in %q", truncate(content, 80))
	}

	var fields domain.ExtractedFields
	if err := json.Unmarshal([]byte(content[start:end+1]), &fields); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}
	return &fields, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
