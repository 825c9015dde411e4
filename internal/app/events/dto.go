package events

import (
	"time"

	"rateKit/internal/domain"
)

// Envelope is what subscribers receive and what the websocket feed writes.
type Envelope struct {
	Topic   string `json:"type"`
	Payload any    `json:"data"`
}

// CredentialRefreshedDTO announces a renewed token without exposing it.
type CredentialRefreshedDTO struct {
	AccountID string          `json:"account_id"`
	Platform  domain.Platform `json:"platform"`
	Kind      string          `json:"kind"`
	ExpiresAt string          `json:"expires_at,omitempty"`
}

func NewCredentialRefreshedDTO(cred *domain.Credential) CredentialRefreshedDTO {
	dto := CredentialRefreshedDTO{
		AccountID: cred.AccountID,
		Platform:  cred.Platform,
		Kind:      string(cred.Kind),
	}
	if !cred.ExpiresAt.IsZero() {
		dto.ExpiresAt = cred.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return dto
}
