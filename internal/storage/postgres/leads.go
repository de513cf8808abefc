package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/m3connect/portal/internal/models"
	"github.com/m3connect/portal/internal/storage"
)

var _ storage.LeadStore = (*LeadStore)(nil)

// LeadStore keeps partner leads and project submissions. It runs on
// database/sql so it can share the profile store's pool or any other driver.
type LeadStore struct {
	db *sql.DB
}

// NewLeadStore wraps db.
func NewLeadStore(db *sql.DB) *LeadStore {
	return &LeadStore{db: db}
}

// NewLeadStoreFromStore opens a database/sql handle over the store's pool.
func NewLeadStoreFromStore(s *Store) *LeadStore {
	return NewLeadStore(stdlib.OpenDBFromPool(s.pool))
}

// Close releases the database/sql handle; the underlying pool stays open.
func (s *LeadStore) Close() error {
	return s.db.Close()
}

func (s *LeadStore) CreatePartnerLead(ctx context.Context, lead models.PartnerLead) (models.PartnerLead, error) {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.Status == "" {
		lead.Status = models.LeadNew
	}
	row := s.db.QueryRowContext(ctx,
		`insert into partner_leads(id, first_name, last_name, email, phone, company, website, country, actor_type,
			solutions, goals, engagement_level, status)
		values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		returning created_at`,
		lead.ID, lead.FirstName, lead.LastName, lead.Email, lead.Phone, lead.Company, lead.Website, lead.Country,
		lead.ActorType, lead.Solutions, lead.Goals, lead.EngagementLevel, lead.Status,
	)
	if err := row.Scan(&lead.CreatedAt); err != nil {
		return models.PartnerLead{}, fmt.Errorf("insert partner lead: %w", err)
	}
	return lead, nil
}

func (s *LeadStore) ListPartnerLeads(ctx context.Context, status string) ([]models.PartnerLead, error) {
	query := `select id, first_name, last_name, email, phone, company, website, country, actor_type, solutions,
		goals, engagement_level, status, admin_notes, created_at from partner_leads`
	var args []any
	if status != "" {
		query += ` where status=$1`
		args = append(args, status)
	}
	query += ` order by created_at desc`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []models.PartnerLead
	for rows.Next() {
		var l models.PartnerLead
		if err := rows.Scan(&l.ID, &l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.Company, &l.Website,
			&l.Country, &l.ActorType, &l.Solutions, &l.Goals, &l.EngagementLevel, &l.Status, &l.AdminNotes,
			&l.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

func (s *LeadStore) CreateProject(ctx context.Context, p models.ProjectSubmission) (models.ProjectSubmission, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.ProjectNew
	}
	row := s.db.QueryRowContext(ctx,
		`insert into marina_projects(id, user_id, project_type, budget_range, timeline, description, status)
		values($1,$2,$3,$4,$5,$6,$7)
		returning created_at`,
		p.ID, p.UserID, p.ProjectType, p.BudgetRange, p.Timeline, p.Description, p.Status,
	)
	if err := row.Scan(&p.CreatedAt); err != nil {
		return models.ProjectSubmission{}, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

func (s *LeadStore) ListProjects(ctx context.Context, userID string) ([]models.ProjectSubmission, error) {
	query := `select id, user_id, project_type, budget_range, timeline, description, status, admin_notes, created_at
		from marina_projects`
	var args []any
	if userID != "" {
		query += ` where user_id=$1`
		args = append(args, userID)
	}
	query += ` order by created_at desc`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []models.ProjectSubmission
	for rows.Next() {
		var p models.ProjectSubmission
		if err := rows.Scan(&p.ID, &p.UserID, &p.ProjectType, &p.BudgetRange, &p.Timeline, &p.Description,
			&p.Status, &p.AdminNotes, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
