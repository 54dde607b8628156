package models

import "time"

// Category is one of the six fixed email classification labels.
type Category string

const (
	CategoryImportant   Category = "important"
	CategorySpam        Category = "spam"
	CategoryNewsletter  Category = "newsletter"
	CategoryPromotional Category = "promotional"
	CategorySocial      Category = "social"
	CategoryOther       Category = "other"
)

// Categories lists every valid label in display order.
var Categories = []Category{
	CategoryImportant,
	CategorySpam,
	CategoryNewsletter,
	CategoryPromotional,
	CategorySocial,
	CategoryOther,
}

// Valid reports whether c is one of the six known labels.
func (c Category) Valid() bool {
	switch c {
	case CategoryImportant, CategorySpam, CategoryNewsletter,
		CategoryPromotional, CategorySocial, CategoryOther:
		return true
	}
	return false
}

// CoerceCategory maps arbitrary classifier output onto the enum,
// falling back to "other" for anything unrecognized.
func CoerceCategory(s string) Category {
	c := Category(s)
	if c.Valid() {
		return c
	}
	return CategoryOther
}

// EmailRecord is a processed email as stored in a user's mailbox.
type EmailRecord struct {
	ID           string    `json:"id"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	Subject      string    `json:"subject"`
	Content      string    `json:"content"`
	Category     Category  `json:"category"`
	Confidence   float64   `json:"confidence"`
	Reason       string    `json:"reason"`
	ShouldFilter bool      `json:"should_filter"`
	Summary      string    `json:"summary"`
	ActionItems  []string  `json:"action_items"`
	Read         bool      `json:"read"`
	Archived     bool      `json:"archived"`
	ReceivedAt   time.Time `json:"received_at"`
	ProcessedAt  time.Time `json:"processed_at"`

	// ProcessingError carries the inference failure message when the
	// pipeline returned a degraded record.
	ProcessingError string `json:"error,omitempty"`
}

// RawEmail is an inbound email before classification.
type RawEmail struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Content string `json:"content"`
}

// EmailFilter narrows a mailbox listing.
type EmailFilter struct {
	Category   Category `json:"category,omitempty"`
	UnreadOnly bool     `json:"unread_only,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// EmailStats is the derived aggregate over a mailbox.
type EmailStats struct {
	Total      int              `json:"total"`
	Unread     int              `json:"unread"`
	ByCategory map[Category]int `json:"by_category"`
}
