package domain

import "time"

// User is a registered chat identity. ExternalID is the transport's user id,
// which is also used as the owner id of every record.
type User struct {
	ID          int64
	ExternalID  int64
	DisplayName string
	Language    string
	Currency    string
	CreatedAt   time.Time
}

// Defaults applied when a user registers implicitly on first contact.
const (
	DefaultLanguage = "ar"
	DefaultCurrency = "EUR"
)
