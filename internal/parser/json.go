package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-bot/internal/domain"
)

// cleanModelJSON strips markdown fences and any chatter around the JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = s[start : end+1]
		}
	}

	return strings.TrimSpace(s)
}

// decodeResult turns raw model text into a Result. Numbers are kept as
// json.Number so amounts do not pass through float64.
func decodeResult(raw string) (Result, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return Result{}, fmt.Errorf("decodeResult: empty response: %w", domain.ErrParseFailure)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(clean)))
	dec.UseNumber()

	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		return Result{}, fmt.Errorf("decodeResult: unmarshal JSON: %v: %w", err, domain.ErrParseFailure)
	}
	if fields == nil {
		return Result{}, fmt.Errorf("decodeResult: null object: %w", domain.ErrParseFailure)
	}

	if errVal, ok := fields["error"]; ok && errVal != nil {
		question, _ := fields["question"].(string)
		if strings.TrimSpace(question) == "" {
			question = DefaultQuestion
		}
		return Result{Unclear: true, Question: question}, nil
	}

	return Result{Fields: fields}, nil
}
