package model

import (
	"strings"
	"time"
)

// SignatureEntry is one ledger row: a signer asked to sign a provider document
type SignatureEntry struct {
	ID           int64      `json:"id"`
	ContractID   *string    `json:"contract_id"`
	SignerEmail  string     `json:"signer_email"`
	SignerName   string     `json:"signer_name,omitempty"`
	DocumentCode string     `json:"document_code"`
	DocumentName string     `json:"document_name,omitempty"`
	DocumentURL  string     `json:"document_url,omitempty"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Signature status constants
const (
	SignaturePending   = "pending"
	SignatureSent      = "sent"
	SignatureCompleted = "completed"
	SignatureRejected  = "rejected"
	SignatureExpired   = "expired"
)

// MapProviderStatus maps the provider's status vocabulary onto ours.
// Unknown or empty values map to pending.
func MapProviderStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "pending":
		return SignaturePending
	case "sent":
		return SignatureSent
	case "signed", "completed", "finished":
		return SignatureCompleted
	case "rejected", "cancelled":
		return SignatureRejected
	case "expired":
		return SignatureExpired
	default:
		return SignaturePending
	}
}

// DispatchRecord remembers a successful dispatch under its idempotency key
type DispatchRecord struct {
	IdempotencyKey string    `json:"idempotency_key"`
	ContractID     string    `json:"contract_id"`
	DocumentCode   string    `json:"document_code"`
	SessionCode    string    `json:"session_code"`
	SignerIDs      []string  `json:"signer_ids"`
	CreatedAt      time.Time `json:"created_at"`
}
