package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/crm-contacts/internal/domain"
	"github.com/ignite/crm-contacts/internal/service/contact"
)

// StatsRepo implements contact.StatsRepository against the campaign email
// table owned by the sending subsystem. Reads are point-in-time aggregates.
type StatsRepo struct{ db *sql.DB }

// NewStatsRepo creates a Postgres-backed stats repository.
func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

var _ contact.StatsRepository = (*StatsRepo)(nil)

func (r *StatsRepo) EngagementCounts(ctx context.Context, contactID string) (domain.EngagementStats, error) {
	var s domain.EngagementStats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'sent'),
			COUNT(*) FILTER (WHERE status = 'sent' AND is_open > 0),
			COUNT(*) FILTER (WHERE status = 'sent' AND click_counter IS NOT NULL)
		FROM crm_campaign_emails
		WHERE contact_id = $1`,
		contactID,
	).Scan(&s.Emails, &s.Opens, &s.Clicks)
	if err != nil {
		return domain.EngagementStats{}, fmt.Errorf("engagement counts: %w", err)
	}
	return s, nil
}
