package domain

import "time"

// Tag is a user-defined classification entity attached to contacts
// many-to-many.
type Tag struct {
	ID          string    `json:"id" db:"id"`
	Slug        string    `json:"slug" db:"slug"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// List is a mailing list a contact can belong to. Tags and lists share one
// physical pivot table; the discriminator is a storage detail that never
// leaves the repository layer.
type List struct {
	ID          string    `json:"id" db:"id"`
	Slug        string    `json:"slug" db:"slug"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// MetaCustomField is the object_type discriminator for custom field rows.
const MetaCustomField = "custom_field"

// ContactMeta is a per-contact key/value row. Only rows with object_type
// "custom_field" are exposed as a contact's custom fields. At most one row
// exists per (contact, key) for that type, enforced by find-or-create logic.
type ContactMeta struct {
	ID         string    `json:"id" db:"id"`
	ContactID  string    `json:"contact_id" db:"contact_id"`
	ObjectType string    `json:"object_type" db:"object_type"`
	Key        string    `json:"key" db:"key"`
	Value      string    `json:"value" db:"value"`
	CreatedBy  string    `json:"created_by" db:"created_by"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// CustomFieldDef describes one configured custom field (slug + UI label).
type CustomFieldDef struct {
	Slug  string `json:"slug" db:"slug"`
	Label string `json:"label" db:"label"`
}

// EngagementStats holds the point-in-time engagement counters for a contact.
// Emails counts terminal sent emails; Opens and Clicks are subsets of those.
type EngagementStats struct {
	Emails int `json:"emails"`
	Opens  int `json:"opens"`
	Clicks int `json:"clicks"`
}
