package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/m3connect/portal/internal/models"
	"github.com/m3connect/portal/internal/storage"
)

const resourceColumns = `id::text, title, summary, content, type, topic, language, access_level, thumbnail_url,
	file_url, partner_id::text, published, created_at`

// ListResources returns published resources matching filter, newest first.
func (s *Store) ListResources(ctx context.Context, filter storage.ResourceFilter) ([]models.Resource, error) {
	where := []string{"published = TRUE"}
	var args []any
	eq := func(col, val string) {
		if val = strings.TrimSpace(val); val != "" {
			args = append(args, val)
			where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
		}
	}
	eq("type", filter.Type)
	eq("topic", filter.Topic)
	eq("language", filter.Language)
	if filter.Access != nil {
		eq("access_level", string(*filter.Access))
	}

	query := `SELECT ` + resourceColumns + ` FROM resources WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY created_at DESC;`
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return collect(rows, scanResource)
}

// GetResource fetches one published resource.
func (s *Store) GetResource(ctx context.Context, id string) (models.Resource, error) {
	query := `SELECT ` + resourceColumns + ` FROM resources WHERE id::text = $1 AND published = TRUE;`
	return scanResource(s.pool.QueryRow(ctx, query, id))
}

const eventColumns = `id::text, title, description, date_time, location, language, access_level, speakers,
	partner_id::text, replay_url, created_at`

// ListEvents returns events matching filter. Upcoming events sort soonest
// first, past events most recent first.
func (s *Store) ListEvents(ctx context.Context, filter storage.EventFilter) ([]models.Event, error) {
	var where []string
	var args []any
	if lang := strings.TrimSpace(filter.Language); lang != "" {
		args = append(args, lang)
		where = append(where, fmt.Sprintf("language = $%d", len(args)))
	}
	if filter.Access != nil {
		args = append(args, string(*filter.Access))
		where = append(where, fmt.Sprintf("access_level = $%d", len(args)))
	}
	order := "date_time ASC"
	if filter.Upcoming != nil {
		if *filter.Upcoming {
			where = append(where, "date_time >= NOW()")
		} else {
			where = append(where, "date_time < NOW()")
			order = "date_time DESC"
		}
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY ` + order + `;`
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return collect(rows, scanEvent)
}

// GetEvent fetches one event.
func (s *Store) GetEvent(ctx context.Context, id string) (models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id::text = $1;`
	return scanEvent(s.pool.QueryRow(ctx, query, id))
}

// ListPartners returns featured partners first, then by name.
func (s *Store) ListPartners(ctx context.Context) ([]models.Partner, error) {
	const query = `
	SELECT id::text, name, description, logo_url, website, sector, country, is_featured, created_at
	FROM partners
	ORDER BY is_featured DESC, name ASC;
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}
	return collect(rows, func(row pgx.Row) (models.Partner, error) {
		var p models.Partner
		err := row.Scan(&p.ID, &p.Name, &p.Description, &p.LogoURL, &p.Website, &p.Sector, &p.Country,
			&p.IsFeatured, &p.CreatedAt)
		return p, err
	})
}

func scanResource(row pgx.Row) (models.Resource, error) {
	var r models.Resource
	var level string
	err := row.Scan(&r.ID, &r.Title, &r.Summary, &r.Content, &r.Type, &r.Topic, &r.Language, &level,
		&r.ThumbnailURL, &r.FileURL, &r.PartnerID, &r.Published, &r.CreatedAt)
	if err != nil {
		return models.Resource{}, notFound(err)
	}
	r.AccessLevel, _ = models.ParseAccessLevel(level)
	return r, nil
}

func scanEvent(row pgx.Row) (models.Event, error) {
	var e models.Event
	var level string
	var speakers []byte
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.DateTime, &e.Location, &e.Language, &level, &speakers,
		&e.PartnerID, &e.ReplayURL, &e.CreatedAt)
	if err != nil {
		return models.Event{}, notFound(err)
	}
	e.AccessLevel, _ = models.ParseAccessLevel(level)
	if len(speakers) > 0 {
		e.Speakers = speakers
	}
	return e, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}
