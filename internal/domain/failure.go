package domain

import (
	"context"

	"github.com/dvloznov/finance-bot/internal/logger"
)

// Failure converts err into a reply and logs it. Errors outside the taxonomy
// are logged at error level, expected ones at warn.
func Failure(ctx context.Context, op string, err error) Reply {
	reply, known := ReplyFromError(err)
	log := logger.FromContext(ctx)
	if known {
		log.Warn().Err(err).Str("op", op).Msg("Request rejected")
	} else {
		log.Error().Err(err).Str("op", op).Msg("Request failed")
	}
	return reply
}
