// Package parser is the boundary to the language model that turns free text
// into transaction and recurring-payment fields.
package parser

import (
	"context"

	"cloud.google.com/go/civil"
)

// Result is the decoded model output for one message. When Unclear is set the
// model asked a clarifying Question and Fields is nil.
type Result struct {
	Unclear  bool
	Question string
	Fields   map[string]interface{}
}

// Parser extracts structured records from free text.
//
// Implementations return domain.ErrParseFailure for malformed output and
// domain.ErrTransient when the model service is unreachable.
type Parser interface {
	// ParseTransaction extracts {type, amount, category, description, date}.
	ParseTransaction(ctx context.Context, text string, today civil.Date) (Result, error)

	// ParseRecurring extracts {name, amount, frequency, next_due_date}.
	ParseRecurring(ctx context.Context, text string, today civil.Date) (Result, error)
}

// DefaultQuestion is asked when the model flags input as unclear without a question.
const DefaultQuestion = "I didn't quite get that. Could you say it another way, with the amount and what it was for?"
