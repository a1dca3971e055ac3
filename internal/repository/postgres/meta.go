package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/crm-contacts/internal/domain"
	"github.com/ignite/crm-contacts/internal/service/contact"
)

// MetaRepo implements contact.MetaRepository for custom field rows.
type MetaRepo struct{ db *sql.DB }

// NewMetaRepo creates a Postgres-backed meta repository.
func NewMetaRepo(db *sql.DB) *MetaRepo { return &MetaRepo{db: db} }

var _ contact.MetaRepository = (*MetaRepo)(nil)

const metaColumns = `id, contact_id, object_type, key, value, created_by, created_at, updated_at`

func (r *MetaRepo) ListByKeys(ctx context.Context, contactID string, keys []string) ([]domain.ContactMeta, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+metaColumns+` FROM crm_contact_meta
		 WHERE contact_id = $1 AND object_type = $2 AND key = ANY($3)`,
		contactID, domain.MetaCustomField, pq.Array(keys),
	)
	if err != nil {
		return nil, fmt.Errorf("list meta: %w", err)
	}
	defer rows.Close()

	var out []domain.ContactMeta
	for rows.Next() {
		var m domain.ContactMeta
		if err := rows.Scan(&m.ID, &m.ContactID, &m.ObjectType, &m.Key, &m.Value,
			&m.CreatedBy, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MetaRepo) Find(ctx context.Context, contactID, key string) (*domain.ContactMeta, error) {
	var m domain.ContactMeta
	err := r.db.QueryRowContext(ctx,
		`SELECT `+metaColumns+` FROM crm_contact_meta
		 WHERE contact_id = $1 AND object_type = $2 AND key = $3`,
		contactID, domain.MetaCustomField, key,
	).Scan(&m.ID, &m.ContactID, &m.ObjectType, &m.Key, &m.Value,
		&m.CreatedBy, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find meta: %w", err)
	}
	return &m, nil
}

func (r *MetaRepo) Insert(ctx context.Context, m *domain.ContactMeta) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO crm_contact_meta (`+metaColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.ContactID, m.ObjectType, m.Key, m.Value,
		m.CreatedBy, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert meta: %w", err)
	}
	return nil
}

func (r *MetaRepo) UpdateValue(ctx context.Context, id, value string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE crm_contact_meta SET value = $2, updated_at = NOW() WHERE id = $1`,
		id, value,
	)
	if err != nil {
		return fmt.Errorf("update meta: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return contact.ErrNotFound
	}
	return nil
}

func (r *MetaRepo) DeleteByKeys(ctx context.Context, contactID string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM crm_contact_meta
		 WHERE contact_id = $1 AND object_type = $2 AND key = ANY($3)`,
		contactID, domain.MetaCustomField, pq.Array(keys),
	)
	if err != nil {
		return fmt.Errorf("delete meta: %w", err)
	}
	return nil
}
