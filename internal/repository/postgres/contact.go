package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/ignite/crm-contacts/internal/domain"
	"github.com/ignite/crm-contacts/internal/service/contact"
)

// ContactRepo implements contact.Repository against PostgreSQL.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact repository.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

var _ contact.Repository = (*ContactRepo)(nil)

const contactColumns = `id, user_id, email, email_hash, prefix, first_name, last_name,
	status, contact_type, address_line_1, address_line_2, postal_code, city, state,
	country, phone, timezone, date_of_birth, source, avatar, life_time_value,
	total_points, latitude, longitude, ip, last_activity, created_at, updated_at`

// searchFields is the fixed ordered list the free-text filter runs over.
// The first field matches anywhere in the value, the rest match prefixes
// only. The asymmetry is inherited behavior callers rely on; do not unify.
var searchFields = []string{
	"email", "first_name", "last_name", "address_line_1", "address_line_2",
	"postal_code", "city", "state", "country", "phone", "status",
}

func scanContact(row interface{ Scan(...any) error }) (*domain.Contact, error) {
	var c domain.Contact
	var lastActivity sql.NullTime
	err := row.Scan(
		&c.ID, &c.UserID, &c.Email, &c.EmailHash, &c.Prefix, &c.FirstName, &c.LastName,
		&c.Status, &c.ContactType, &c.AddressLine1, &c.AddressLine2, &c.PostalCode,
		&c.City, &c.State, &c.Country, &c.Phone, &c.Timezone, &c.DateOfBirth,
		&c.Source, &c.Avatar, &c.LifeTimeValue, &c.TotalPoints, &c.Latitude,
		&c.Longitude, &c.IP, &lastActivity, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastActivity.Valid {
		c.LastActivity = &lastActivity.Time
	}
	return &c, nil
}

func (r *ContactRepo) Get(ctx context.Context, id string) (*domain.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM crm_contacts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

// GetByEmail resolves by the email fingerprint, not the raw string, so the
// lookup rides the hash index.
func (r *ContactRepo) GetByEmail(ctx context.Context, email string) (*domain.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM crm_contacts WHERE email_hash = $1`,
		domain.EmailFingerprint(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact by email: %w", err)
	}
	return c, nil
}

func (r *ContactRepo) ListByEmails(ctx context.Context, emails []string) ([]domain.Contact, error) {
	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		if e = domain.NormalizeEmail(e); e != "" {
			normalized = append(normalized, e)
		}
	}
	if len(normalized) == 0 {
		return nil, nil
	}
	return r.queryMany(ctx,
		`SELECT `+contactColumns+` FROM crm_contacts WHERE email = ANY($1)`,
		pq.Array(normalized))
}

func (r *ContactRepo) ListByIDs(ctx context.Context, ids []string) ([]domain.Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.queryMany(ctx,
		`SELECT `+contactColumns+` FROM crm_contacts WHERE id = ANY($1)`,
		pq.Array(ids))
}

func (r *ContactRepo) queryMany(ctx context.Context, query string, args ...any) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

const insertContactSQL = `
	INSERT INTO crm_contacts
		(` + contactColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28)`

func insertArgs(c *domain.Contact) []any {
	var lastActivity sql.NullTime
	if c.LastActivity != nil {
		lastActivity = sql.NullTime{Time: *c.LastActivity, Valid: true}
	}
	return []any{
		c.ID, c.UserID, c.Email, c.EmailHash, c.Prefix, c.FirstName, c.LastName,
		c.Status, c.ContactType, c.AddressLine1, c.AddressLine2, c.PostalCode,
		c.City, c.State, c.Country, c.Phone, c.Timezone, c.DateOfBirth,
		c.Source, c.Avatar, c.LifeTimeValue, c.TotalPoints, c.Latitude,
		c.Longitude, c.IP, lastActivity, c.CreatedAt, c.UpdatedAt,
	}
}

func (r *ContactRepo) Create(ctx context.Context, c *domain.Contact) (string, error) {
	if _, err := r.db.ExecContext(ctx, insertContactSQL, insertArgs(c)...); err != nil {
		return "", fmt.Errorf("create contact: %w", err)
	}
	return c.ID, nil
}

func (r *ContactRepo) Update(ctx context.Context, c *domain.Contact) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE crm_contacts SET
			user_id = $2, email = $3, email_hash = $4, prefix = $5,
			first_name = $6, last_name = $7, status = $8, contact_type = $9,
			address_line_1 = $10, address_line_2 = $11, postal_code = $12,
			city = $13, state = $14, country = $15, phone = $16, timezone = $17,
			date_of_birth = $18, source = $19, avatar = $20, life_time_value = $21,
			total_points = $22, latitude = $23, longitude = $24, ip = $25,
			last_activity = $26, updated_at = NOW()
		WHERE id = $1`,
		insertArgs(c)[:26]...,
	)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return contact.ErrNotFound
	}
	return nil
}

// BulkInsert writes the batch inside one transaction with a savepoint per
// row. A row losing the email uniqueness race fails alone; everything else
// commits. This is the conflict-handling end of the import pipeline's
// check-then-act window.
func (r *ContactRepo) BulkInsert(ctx context.Context, batch []*domain.Contact) ([]string, []contact.RowFailure, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin bulk insert: %w", err)
	}
	defer tx.Rollback()

	var ids []string
	var failed []contact.RowFailure
	for _, c := range batch {
		if _, err := tx.ExecContext(ctx, "SAVEPOINT row_sp"); err != nil {
			return nil, nil, fmt.Errorf("savepoint: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insertContactSQL, insertArgs(c)...); err != nil {
			tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT row_sp")
			failed = append(failed, contact.RowFailure{Email: c.Email, Err: rowErr(err)})
			continue
		}
		tx.ExecContext(ctx, "RELEASE SAVEPOINT row_sp")
		ids = append(ids, c.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit bulk insert: %w", err)
	}
	return ids, failed, nil
}

func rowErr(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return "duplicate email"
	}
	return err.Error()
}

// List applies the composable filters and returns one page plus the
// unpaginated total.
func (r *ContactRepo) List(ctx context.Context, f contact.ListFilter) ([]domain.Contact, int, error) {
	where, args := buildFilter(f)

	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM crm_contacts WHERE `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)
	query := fmt.Sprintf(`SELECT `+contactColumns+` FROM crm_contacts WHERE %s
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	out, err := r.queryMany(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func buildFilter(f contact.ListFilter) (string, []any) {
	conds := []string{"1=1"}
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Search != "" {
		var ors []string
		for i, field := range searchFields {
			if i == 0 {
				ors = append(ors, field+" ILIKE "+arg("%"+f.Search+"%"))
			} else {
				ors = append(ors, field+" ILIKE "+arg(f.Search+"%"))
			}
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	if len(f.Statuses) > 0 {
		conds = append(conds, "status = ANY("+arg(pq.Array(f.Statuses))+")")
	}
	if f.ContactType != "" {
		conds = append(conds, "contact_type = "+arg(f.ContactType))
	}

	// Membership runs as a sub-query over the shared pivot, never a join
	// that could duplicate contact rows.
	member := func(table, objectType, column string, keys []string) {
		conds = append(conds, fmt.Sprintf(
			`id IN (SELECT p.contact_id FROM crm_contact_pivot p
				INNER JOIN %s o ON o.id = p.object_id
				WHERE p.object_type = %s AND o.%s = ANY(%s))`,
			table, arg(objectType), column, arg(pq.Array(keys))))
	}
	if len(f.TagIDs) > 0 {
		member("crm_tags", pivotTypeTag, "id", f.TagIDs)
	}
	if len(f.TagSlugs) > 0 {
		member("crm_tags", pivotTypeTag, "slug", f.TagSlugs)
	}
	if len(f.ListIDs) > 0 {
		member("crm_lists", pivotTypeList, "id", f.ListIDs)
	}
	if len(f.ListSlugs) > 0 {
		member("crm_lists", pivotTypeList, "slug", f.ListSlugs)
	}

	return strings.Join(conds, " AND "), args
}
