package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/crm-contacts/internal/domain"
	"github.com/ignite/crm-contacts/internal/service/contact"
)

// UserDirectory resolves platform user ids from the host's user table.
// A missing user is not an error; the upsert path simply skips the link.
type UserDirectory struct{ db *sql.DB }

// NewUserDirectory creates a Postgres-backed user directory.
func NewUserDirectory(db *sql.DB) *UserDirectory { return &UserDirectory{db: db} }

var _ contact.UserDirectory = (*UserDirectory)(nil)

func (r *UserDirectory) UserIDByEmail(ctx context.Context, email string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM crm_users WHERE email = $1`,
		domain.NormalizeEmail(email),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("user lookup: %w", err)
	}
	return id, nil
}

// FieldCatalog reads the configured custom field definitions.
type FieldCatalog struct{ db *sql.DB }

// NewFieldCatalog creates a Postgres-backed custom field catalog.
func NewFieldCatalog(db *sql.DB) *FieldCatalog { return &FieldCatalog{db: db} }

var _ contact.FieldCatalog = (*FieldCatalog)(nil)

func (r *FieldCatalog) CustomFieldDefs(ctx context.Context) ([]domain.CustomFieldDef, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT slug, label FROM crm_custom_fields ORDER BY sort_order, slug`)
	if err != nil {
		return nil, fmt.Errorf("list custom field defs: %w", err)
	}
	defer rows.Close()

	var out []domain.CustomFieldDef
	for rows.Next() {
		var d domain.CustomFieldDef
		if err := rows.Scan(&d.Slug, &d.Label); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
