package parser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/logger"
	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used for parsing.
const DefaultModelName = "gemini-2.5-flash"

// Generation settings. Low temperature keeps the JSON shape stable.
const (
	defaultTemperature     float32 = 0.1
	defaultMaxOutputTokens int32   = 300
	defaultTimeout                 = 15 * time.Second
)

// contentGenerator is the subset of *genai.Models the parser calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures GeminiParser.
type GeminiConfig struct {
	APIKey          string
	Model           string
	Timeout         time.Duration
	DefaultCurrency string
}

// GeminiParser implements Parser with Google's Gemini models.
type GeminiParser struct {
	models   contentGenerator
	model    string
	timeout  time.Duration
	currency string
}

// NewGeminiParser creates a Gemini client. An empty APIKey falls back to the
// GEMINI_API_KEY / GOOGLE_API_KEY environment variables read by the SDK.
func NewGeminiParser(ctx context.Context, cfg GeminiConfig) (*GeminiParser, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiParser: create genai client: %w", err)
	}
	return newGeminiParser(client.Models, cfg), nil
}

func newGeminiParser(models contentGenerator, cfg GeminiConfig) *GeminiParser {
	if cfg.Model == "" {
		cfg.Model = DefaultModelName
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = domain.DefaultCurrency
	}
	return &GeminiParser{
		models:   models,
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		currency: cfg.DefaultCurrency,
	}
}

// ParseTransaction implements Parser.
func (p *GeminiParser) ParseTransaction(ctx context.Context, text string, today civil.Date) (Result, error) {
	return p.parse(ctx, "ParseTransaction", buildTransactionPrompt(today, p.currency), text)
}

// ParseRecurring implements Parser.
func (p *GeminiParser) ParseRecurring(ctx context.Context, text string, today civil.Date) (Result, error) {
	return p.parse(ctx, "ParseRecurring", buildRecurringPrompt(today, p.currency), text)
}

func (p *GeminiParser) parse(ctx context.Context, op, systemPrompt, text string) (Result, error) {
	log := logger.FromContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: text}},
		},
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
		Temperature:       genai.Ptr(defaultTemperature),
		MaxOutputTokens:   defaultMaxOutputTokens,
		ResponseMIMEType:  "application/json",
	}

	start := time.Now()
	resp, err := p.models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn().Str("op", op).Dur("timeout", p.timeout).Msg("Model call timed out")
			return Result{Unclear: true, Question: DefaultQuestion}, nil
		}
		return Result{}, fmt.Errorf("%s: generate content: %v: %w", op, err, domain.ErrTransient)
	}

	rawText := resp.Text()
	result, err := decodeResult(rawText)
	if err != nil {
		log.Warn().Str("op", op).Str("raw_response", rawText).Msg("Model returned non-JSON output")
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Debug().
		Str("op", op).
		Bool("unclear", result.Unclear).
		Str("fields", describe(result.Fields)).
		Dur("duration", time.Since(start)).
		Msg("Model parsed message")

	return result, nil
}

var _ Parser = (*GeminiParser)(nil)
