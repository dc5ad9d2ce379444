package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Contract represents a contract row as read by the signature pipeline
type Contract struct {
	ID                  string    `json:"id"`
	Status              string    `json:"status"`
	InternalReference   string    `json:"internal_reference"`
	SigningLocation     string    `json:"signing_location"`
	AdditionalNotes     string    `json:"additional_notes"`
	Publisher           string    `json:"publisher"`
	PublisherPercentage string    `json:"publisher_percentage"`
	CoPublishers        string    `json:"co_publishers"`
	PublisherAdmin      string    `json:"publisher_admin"`
	CreatedAt           time.Time `json:"created_at"`
	WorkID              string    `json:"work_id,omitempty"`
	TemplateID          string    `json:"template_id,omitempty"`
}

// Work is the musical work (song/album) a contract is about. Read-only here.
type Work struct {
	Name             string     `json:"name"`
	AlternativeTitle string     `json:"alternative_title"`
	ISWC             string     `json:"iswc"`
	ISRC             string     `json:"isrc"`
	UPC              string     `json:"upc"`
	Type             string     `json:"type"`
	Status           string     `json:"status"`
	ReleaseDate      *time.Time `json:"release_date,omitempty"`
}

// Participant is a person or company attached to a contract
type Participant struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Email            string          `json:"email"`
	Phone            string          `json:"phone"`
	Role             string          `json:"role"`
	Percentage       decimal.Decimal `json:"percentage"`
	IPI              string          `json:"ipi,omitempty"`
	ArtisticName     string          `json:"artistic_name,omitempty"`
	ManagementEntity string          `json:"management_entity,omitempty"`
	Type             string          `json:"type,omitempty"`
}

// NormalizedEmail returns the email as used for signer identity
func (p Participant) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(p.Email))
}

// Template holds a stored contract template. HTML is nil when the column is
// missing or empty; Type is only a hint for the built-in fallback.
type Template struct {
	ID   string  `json:"id,omitempty"`
	HTML *string `json:"template_html,omitempty"`
	Type string  `json:"type,omitempty"`
}

// Template types
const (
	TemplateModern = "modern"
	TemplateSimple = "simple"
)

// ContractGraph is the contract with everything joined to it
type ContractGraph struct {
	Contract     Contract      `json:"contract"`
	Work         Work          `json:"work"`
	Template     Template      `json:"template"`
	Participants []Participant `json:"participants"`
}

// ContractStatus constants
const (
	StatusDraft    = "draft"
	StatusSent     = "sent"
	StatusSigned   = "signed"
	StatusExpired  = "expired"
	StatusArchived = "archived"
)
