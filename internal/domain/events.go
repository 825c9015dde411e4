package domain

import "time"

// AccountEvent is published on the event bus after a link or a stats refresh.
type AccountEvent struct {
	UserID    string    `json:"user_id"`
	AccountID string    `json:"account_id"`
	Platform  Platform  `json:"platform"`
	At        time.Time `json:"at"`
	Detail    string    `json:"detail,omitempty"`
}
