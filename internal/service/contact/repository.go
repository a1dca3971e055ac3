package contact

import (
	"context"

	"github.com/ignite/crm-contacts/internal/domain"
)

// Repository defines the data access contract for contacts.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single contact. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Contact, error)

	// GetByEmail looks a contact up by normalized email. Returns ErrNotFound
	// if no contact holds that email.
	GetByEmail(ctx context.Context, email string) (*domain.Contact, error)

	// ListByEmails returns every contact whose email is in the given set.
	ListByEmails(ctx context.Context, emails []string) ([]domain.Contact, error)

	// ListByIDs returns contacts for the given ids, skipping unknown ids.
	ListByIDs(ctx context.Context, ids []string) ([]domain.Contact, error)

	// Create inserts a new contact and returns its id.
	Create(ctx context.Context, c *domain.Contact) (string, error)

	// Update persists all columns of an existing contact.
	Update(ctx context.Context, c *domain.Contact) error

	// BulkInsert inserts a batch in one transaction. A row that violates the
	// email uniqueness constraint fails alone and is reported in the failure
	// slice; the rest of the batch proceeds. Returns the ids actually inserted.
	BulkInsert(ctx context.Context, batch []*domain.Contact) ([]string, []RowFailure, error)

	// List returns contacts matching the filter plus the unpaginated total.
	List(ctx context.Context, f ListFilter) ([]domain.Contact, int, error)
}

// PivotRepository maintains the many-to-many classification relations. Tags
// and lists are distinct relations at this interface even though one physical
// pivot table backs both; the discriminator stays inside the implementation.
type PivotRepository interface {
	TagIDs(ctx context.Context, contactID string) ([]string, error)
	ListIDs(ctx context.Context, contactID string) ([]string, error)
	AttachTags(ctx context.Context, contactID string, tagIDs []string) error
	AttachLists(ctx context.Context, contactID string, listIDs []string) error
	DetachTags(ctx context.Context, contactID string, tagIDs []string) error
	DetachLists(ctx context.Context, contactID string, listIDs []string) error
}

// MetaRepository stores per-contact custom field rows.
type MetaRepository interface {
	// ListByKeys returns the custom field rows for the given keys.
	ListByKeys(ctx context.Context, contactID string, keys []string) ([]domain.ContactMeta, error)

	// Find returns the custom field row for (contactID, key), or ErrNotFound.
	Find(ctx context.Context, contactID, key string) (*domain.ContactMeta, error)

	// Insert creates a new custom field row.
	Insert(ctx context.Context, m *domain.ContactMeta) error

	// UpdateValue replaces the value of an existing row.
	UpdateValue(ctx context.Context, id, value string) error

	// DeleteByKeys removes the custom field rows for the given keys.
	DeleteByKeys(ctx context.Context, contactID string, keys []string) error
}

// StatsRepository reads engagement counters from the campaign email store.
// Counts are point-in-time aggregates, never cached.
type StatsRepository interface {
	EngagementCounts(ctx context.Context, contactID string) (domain.EngagementStats, error)
}

// UserDirectory resolves a platform user id by email. Implementations return
// an empty id (not an error) when no user holds the email.
type UserDirectory interface {
	UserIDByEmail(ctx context.Context, email string) (string, error)
}

// FieldCatalog returns the configured custom field definitions. Only keys
// matching a configured slug are exposed as a contact's custom fields.
type FieldCatalog interface {
	CustomFieldDefs(ctx context.Context) ([]domain.CustomFieldDef, error)
}

// Mailer triggers the double opt-in confirmation email. Delivery is owned
// entirely by the implementation.
type Mailer interface {
	SendDoubleOptIn(ctx context.Context, c *domain.Contact) error
}

// ListFilter holds the composable predicates for listing contacts. All
// fields are optional and combinable.
type ListFilter struct {
	// Search matches case-insensitively across a fixed ordered field list:
	// contains on the first field (email), starts-with on the rest.
	Search      string
	Statuses    []string
	ContactType string
	TagIDs      []string
	TagSlugs    []string
	ListIDs     []string
	ListSlugs   []string
	Limit       int
	Offset      int
}

// RowFailure reports one import row that could not be inserted.
type RowFailure struct {
	Email string `json:"email"`
	Err   string `json:"error"`
}
