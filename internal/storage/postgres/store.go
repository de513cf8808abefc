package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/m3connect/portal/internal/models"
	"github.com/m3connect/portal/internal/storage"
)

// Ensure Store satisfies the storage interfaces at compile time.
var (
	_ storage.ProfileStore = (*Store)(nil)
	_ storage.ContentStore = (*Store)(nil)
)

// Store provides Postgres-backed persistence for profiles and content.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to databaseURL and runs migrations.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Pool exposes the connection pool so other stores can share it.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE TABLE IF NOT EXISTS profiles (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID UNIQUE NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL,
			job_title TEXT,
			phone TEXT,
			linkedin_url TEXT,
			bio TEXT,
			avatar_url TEXT,
			organization_type TEXT NOT NULL DEFAULT '',
			organization_name TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			website TEXT,
			capacity TEXT,
			role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'marina', 'partner', 'admin')),
			status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'verified', 'rejected')),
			partnership_tier TEXT,
			partnership_starts_at TIMESTAMPTZ,
			partnership_expires_at TIMESTAMPTZ,
			solution_categories TEXT[],
			company_logo TEXT,
			company_description TEXT,
			is_public BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS profiles_created_at_idx ON profiles (created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS partners (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			logo_url TEXT,
			website TEXT,
			sector TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			is_featured BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS resources (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			title TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			content TEXT,
			type TEXT NOT NULL DEFAULT '',
			topic TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT 'en',
			access_level TEXT NOT NULL DEFAULT 'public',
			thumbnail_url TEXT,
			file_url TEXT,
			partner_id UUID REFERENCES partners(id) ON DELETE SET NULL,
			published BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			date_time TIMESTAMPTZ NOT NULL,
			location TEXT,
			language TEXT NOT NULL DEFAULT 'en',
			access_level TEXT NOT NULL DEFAULT 'public',
			speakers JSONB,
			partner_id UUID REFERENCES partners(id) ON DELETE SET NULL,
			replay_url TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS partner_leads (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT,
			company TEXT NOT NULL,
			website TEXT,
			country TEXT NOT NULL DEFAULT '',
			actor_type TEXT NOT NULL DEFAULT '',
			solutions TEXT,
			goals TEXT,
			engagement_level TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'new',
			admin_notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE TABLE IF NOT EXISTS marina_projects (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL,
			project_type TEXT NOT NULL,
			budget_range TEXT NOT NULL DEFAULT '',
			timeline TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'new',
			admin_notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS marina_projects_user_idx ON marina_projects (user_id, created_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

const profileColumns = `id::text, user_id::text, first_name, last_name, email, job_title, phone, linkedin_url, bio,
	avatar_url, organization_type, organization_name, country, website, capacity, role, status, partnership_tier,
	partnership_starts_at, partnership_expires_at, solution_categories, company_logo, company_description,
	is_public, created_at, updated_at`

// GetByUserID fetches the profile owned by userID.
func (s *Store) GetByUserID(ctx context.Context, userID string) (models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE user_id = $1;`
	return scanProfile(s.pool.QueryRow(ctx, query, userID))
}

// Create inserts a profile row. Role and status are stored as given; the
// caller decides them.
func (s *Store) Create(ctx context.Context, p models.Profile) (models.Profile, error) {
	query := `
		INSERT INTO profiles (user_id, first_name, last_name, email, job_title, organization_type,
			organization_name, country, website, capacity, role, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + profileColumns + `;`
	row := s.pool.QueryRow(ctx, query,
		p.UserID, p.FirstName, p.LastName, p.Email, p.JobTitle, p.OrganizationType,
		p.OrganizationName, p.Country, p.Website, p.Capacity, string(p.Role), string(p.Status),
	)
	created, err := scanProfile(row)
	if err != nil {
		if isUniqueViolation(err) {
			return models.Profile{}, storage.ErrAlreadyExists
		}
		return models.Profile{}, err
	}
	return created, nil
}

// UpdateByUserID applies the non-nil fields of update.
func (s *Store) UpdateByUserID(ctx context.Context, userID string, update models.ProfileUpdate) (models.Profile, error) {
	cols, vals := update.Columns()
	if len(cols) == 0 {
		return s.GetByUserID(ctx, userID)
	}
	return s.updateColumns(ctx, userID, cols, vals)
}

// Moderate changes role and/or status.
func (s *Store) Moderate(ctx context.Context, userID string, change models.Moderation) (models.Profile, error) {
	var cols []string
	var vals []any
	if change.Role != nil {
		cols = append(cols, "role")
		vals = append(vals, string(*change.Role))
	}
	if change.Status != nil {
		cols = append(cols, "status")
		vals = append(vals, string(*change.Status))
	}
	if len(cols) == 0 {
		return s.GetByUserID(ctx, userID)
	}
	return s.updateColumns(ctx, userID, cols, vals)
}

func (s *Store) updateColumns(ctx context.Context, userID string, cols []string, vals []any) (models.Profile, error) {
	sets := make([]string, 0, len(cols)+1)
	for i, col := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+1))
	}
	sets = append(sets, "updated_at = NOW()")
	args := append(vals, userID)
	query := fmt.Sprintf(`UPDATE profiles SET %s WHERE user_id = $%d RETURNING %s;`,
		strings.Join(sets, ", "), len(args), profileColumns)
	return scanProfile(s.pool.QueryRow(ctx, query, args...))
}

// List returns profiles matching filter, newest first.
func (s *Store) List(ctx context.Context, filter storage.ProfileFilter) ([]models.Profile, error) {
	var where []string
	var args []any
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(first_name || ' ' || last_name ILIKE $%d OR email ILIKE $%d OR organization_name ILIKE $%d)", n, n, n))
	}
	if filter.Role != nil {
		args = append(args, string(*filter.Role))
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + profileColumns + ` FROM profiles`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProfile(row pgx.Row) (models.Profile, error) {
	var p models.Profile
	var role, status string
	err := row.Scan(
		&p.ID, &p.UserID, &p.FirstName, &p.LastName, &p.Email, &p.JobTitle, &p.Phone, &p.LinkedInURL, &p.Bio,
		&p.AvatarURL, &p.OrganizationType, &p.OrganizationName, &p.Country, &p.Website, &p.Capacity, &role, &status,
		&p.PartnershipTier, &p.PartnershipStartsAt, &p.PartnershipExpiresAt, &p.SolutionCategories, &p.CompanyLogo,
		&p.CompanyDescription, &p.IsPublic, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Profile{}, storage.ErrNotFound
		}
		return models.Profile{}, err
	}
	p.Role = models.Role(role)
	p.Status = models.Status(status)
	return p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
