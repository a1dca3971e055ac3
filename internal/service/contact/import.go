package contact

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignite/crm-contacts/internal/domain"
	"github.com/ignite/crm-contacts/internal/pkg/logger"
)

// ImportRow is one record of a bulk import batch.
type ImportRow struct {
	Fields       domain.FieldMap   `json:"fields"`
	CustomValues map[string]string `json:"custom_values"`
}

// ImportResult reports the outcome of an import batch. Inserted and Updated
// are separate sets and do not cover every row: a pre-existing row imported
// with shouldUpdate=false appears in neither even though tag/list attachment
// side effects may still have applied to other rows. Failed holds rows that
// lost a uniqueness race at insert time; their failure never aborts the
// batch. Callers must inspect counts to detect partial application.
type ImportResult struct {
	Inserted []domain.Contact `json:"inserted"`
	Updated  []domain.Contact `json:"updated"`
	Failed   []RowFailure     `json:"failed"`
}

type pendingUpdate struct {
	existing *domain.Contact
	fields   domain.FieldMap
}

// Import runs the bulk pipeline over a batch of rows.
//
// Rows are partitioned against a snapshot of existing contacts fetched once
// at the start; concurrent imports racing into the same emails resolve via
// the unique constraint at insert time, not here. For matched rows a
// newStatus override applies only when it is strict, otherwise the existing
// status is kept, and the incoming source column is always dropped so stored
// provenance survives. Tags and lists are attached to matched plus inserted
// contacts when shouldUpdate is set, to inserted contacts only otherwise.
func (s *Service) Import(ctx context.Context, rows []ImportRow, tagIDs, listIDs []string, shouldUpdate bool, newStatus domain.ContactStatus) (*ImportResult, error) {
	result := &ImportResult{}

	emails := make([]string, 0, len(rows))
	for i := range rows {
		rows[i].Fields = rows[i].Fields.ExplodeFullName()
		emails = append(emails, domain.NormalizeEmail(rows[i].Fields["email"]))
	}

	// Existence snapshot, computed once for the whole batch.
	matched, err := s.contacts.ListByEmails(ctx, emails)
	if err != nil {
		return nil, err
	}
	existingByEmail := make(map[string]*domain.Contact, len(matched))
	for i := range matched {
		existingByEmail[matched[i].Email] = &matched[i]
	}

	var insertables []*domain.Contact
	var updates []pendingUpdate
	// email -> custom values stashed for contacts that do not exist yet
	stashedMeta := map[string]map[string]string{}

	for _, row := range rows {
		email := domain.NormalizeEmail(row.Fields["email"])
		if email == "" {
			result.Failed = append(result.Failed, RowFailure{Err: "missing email"})
			continue
		}
		fields := row.Fields
		fields["email"] = email

		if existing, ok := existingByEmail[email]; ok {
			if newStatus != "" {
				if newStatus.IsStrict() {
					fields["status"] = string(newStatus)
				} else {
					fields["status"] = string(existing.Status)
				}
			}
			delete(fields, "source")

			if len(row.CustomValues) > 0 {
				if err := s.SyncCustomFieldValues(ctx, existing.ID, row.CustomValues, false); err != nil {
					return nil, err
				}
			}
			updates = append(updates, pendingUpdate{existing: existing, fields: fields})
			continue
		}

		c := &domain.Contact{ID: uuid.New().String(), Status: domain.ContactSubscribed}
		c.Fill(fields.OnlyFillable())
		if newStatus != "" {
			c.Status = newStatus
		}
		c.RecomputeHash()
		c.CreatedAt = s.now()
		c.UpdatedAt = c.CreatedAt

		if len(row.CustomValues) > 0 {
			stashedMeta[email] = row.CustomValues
		}
		insertables = append(insertables, c)
	}

	var inserted []domain.Contact
	if len(insertables) > 0 {
		ids, failed, err := s.contacts.BulkInsert(ctx, insertables)
		if err != nil {
			return nil, err
		}
		result.Failed = append(result.Failed, failed...)

		inserted, err = s.contacts.ListByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for i := range inserted {
			if values, ok := stashedMeta[inserted[i].Email]; ok {
				if err := s.SyncCustomFieldValues(ctx, inserted[i].ID, values, false); err != nil {
					return nil, err
				}
			}
		}
		result.Inserted = inserted
	}

	if shouldUpdate {
		for _, u := range updates {
			u.existing.Fill(u.fields.OnlyFillable())
			u.existing.RecomputeHash()
			u.existing.UpdatedAt = s.now()
			if err := s.contacts.Update(ctx, u.existing); err != nil {
				return nil, err
			}
			result.Updated = append(result.Updated, *u.existing)
		}
	}

	if len(tagIDs) > 0 || len(listIDs) > 0 {
		targets := make([]*domain.Contact, 0, len(matched)+len(inserted))
		if shouldUpdate {
			for i := range matched {
				targets = append(targets, &matched[i])
			}
		}
		for i := range inserted {
			targets = append(targets, &inserted[i])
		}
		for _, c := range targets {
			if err := s.attachTags(ctx, c, tagIDs); err != nil {
				return nil, err
			}
			if err := s.attachLists(ctx, c, listIDs); err != nil {
				return nil, err
			}
		}
	}

	logger.Info("import finished",
		"rows", len(rows),
		"inserted", len(result.Inserted),
		"updated", len(result.Updated),
		"failed", len(result.Failed),
	)
	return result, nil
}
