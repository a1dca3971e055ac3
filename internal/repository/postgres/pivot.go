package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/crm-contacts/internal/service/contact"
)

// Pivot object_type discriminator values. Tags and lists share the
// crm_contact_pivot table; the discriminator never leaves this package.
const (
	pivotTypeTag  = "tag"
	pivotTypeList = "list"
)

// PivotRepo implements contact.PivotRepository over the shared pivot table.
type PivotRepo struct{ db *sql.DB }

// NewPivotRepo creates a Postgres-backed pivot repository.
func NewPivotRepo(db *sql.DB) *PivotRepo { return &PivotRepo{db: db} }

var _ contact.PivotRepository = (*PivotRepo)(nil)

func (r *PivotRepo) TagIDs(ctx context.Context, contactID string) ([]string, error) {
	return r.objectIDs(ctx, contactID, pivotTypeTag)
}

func (r *PivotRepo) ListIDs(ctx context.Context, contactID string) ([]string, error) {
	return r.objectIDs(ctx, contactID, pivotTypeList)
}

func (r *PivotRepo) AttachTags(ctx context.Context, contactID string, ids []string) error {
	return r.attach(ctx, contactID, pivotTypeTag, ids)
}

func (r *PivotRepo) AttachLists(ctx context.Context, contactID string, ids []string) error {
	return r.attach(ctx, contactID, pivotTypeList, ids)
}

func (r *PivotRepo) DetachTags(ctx context.Context, contactID string, ids []string) error {
	return r.detach(ctx, contactID, pivotTypeTag, ids)
}

func (r *PivotRepo) DetachLists(ctx context.Context, contactID string, ids []string) error {
	return r.detach(ctx, contactID, pivotTypeList, ids)
}

func (r *PivotRepo) objectIDs(ctx context.Context, contactID, objectType string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT object_id FROM crm_contact_pivot
		 WHERE contact_id = $1 AND object_type = $2
		 ORDER BY created_at`,
		contactID, objectType,
	)
	if err != nil {
		return nil, fmt.Errorf("load %s ids: %w", objectType, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *PivotRepo) attach(ctx context.Context, contactID, objectType string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	// ON CONFLICT backstops the service-level diff against concurrent writers.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO crm_contact_pivot (contact_id, object_id, object_type, created_at)
		SELECT $1, unnest($2::text[]), $3, NOW()
		ON CONFLICT (contact_id, object_id, object_type) DO NOTHING`,
		contactID, pq.Array(ids), objectType,
	)
	if err != nil {
		return fmt.Errorf("attach %s: %w", objectType, err)
	}
	return nil
}

func (r *PivotRepo) detach(ctx context.Context, contactID, objectType string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM crm_contact_pivot
		 WHERE contact_id = $1 AND object_type = $2 AND object_id = ANY($3)`,
		contactID, objectType, pq.Array(ids),
	)
	if err != nil {
		return fmt.Errorf("detach %s: %w", objectType, err)
	}
	return nil
}
