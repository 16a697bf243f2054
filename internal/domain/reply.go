package domain

import (
	"errors"
	"fmt"
)

// Reply is what a service hands back to the conversational surface.
// Exactly one of Message or Question is set.
type Reply struct {
	OK       bool   `json:"ok"`
	Message  string `json:"message,omitempty"`
	Question string `json:"question,omitempty"`
}

// Text returns whichever of Message or Question is set.
func (r Reply) Text() string {
	if r.Question != "" {
		return r.Question
	}
	return r.Message
}

// Success builds a confirmation reply.
func Success(format string, args ...interface{}) Reply {
	return Reply{OK: true, Message: fmt.Sprintf(format, args...)}
}

// Ask builds a clarifying-question reply.
func Ask(question string) Reply {
	return Reply{Question: question}
}

// Messages used when an error is converted to a reply.
const (
	MsgParseFailure = "I couldn't understand that message. Could you rephrase it?"
	MsgTransient    = "Something went wrong on our side. Please try again."
	MsgUnexpected   = "Something went wrong. Please try again later."
)

// ReplyFromError converts a service error into the reply shown to the user.
// The boolean is false for errors outside the taxonomy; callers log those.
func ReplyFromError(err error) (Reply, bool) {
	var unclear *UnclearError
	var invalid *ValidationError
	var missing *NotFoundError

	switch {
	case errors.As(err, &unclear):
		return Ask(unclear.Question), true
	case errors.As(err, &invalid):
		return Reply{Message: "⚠️ " + invalid.Reason}, true
	case errors.As(err, &missing):
		return Reply{Message: fmt.Sprintf("⚠️ %s #%s was not found.", missing.Entity, missing.ID)}, true
	case errors.Is(err, ErrNotFound):
		return Reply{Message: "⚠️ Not found."}, true
	case errors.Is(err, ErrParseFailure):
		return Ask(MsgParseFailure), true
	case errors.Is(err, ErrTransient):
		return Ask(MsgTransient), true
	}
	return Reply{Message: MsgUnexpected}, false
}
