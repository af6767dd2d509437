package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rezkam/mono/internal/domain"
)

const templateColumns = `id, cron, timezone, payload, priority, max_retries,
	active, last_materialized_until, sync_horizon_days, created_at, updated_at`

// CreateTemplate persists a new recurring template and returns its id.
func (s *Store) CreateTemplate(ctx context.Context, tpl *domain.Template) (string, error) {
	id := tpl.ID
	if id == "" {
		generated, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("generate template id: %w", err)
		}
		id = generated.String()
	}

	payload, err := json.Marshal(tpl.Payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	timezone := tpl.Timezone
	if timezone == "" {
		timezone = "UTC"
	}

	now := time.Now().UTC()
	const query = `
		INSERT INTO templates (
			id, cron, timezone, payload, priority, max_retries,
			active, last_materialized_until, sync_horizon_days, created_at, updated_at
		) VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8, $9, $10, $10)`

	_, err = s.pool.Exec(ctx, query,
		id, tpl.Cron, timezone, payload, int(tpl.Priority), tpl.MaxRetries,
		tpl.Active, tpl.LastMaterializedUntil, tpl.SyncHorizonDays, now,
	)
	if err != nil {
		return "", fmt.Errorf("insert template: %w", err)
	}

	tpl.ID = id
	tpl.Timezone = timezone
	tpl.CreatedAt = now
	tpl.UpdatedAt = now
	return id, nil
}

func scanTemplate(row pgx.Row) (*domain.Template, error) {
	var (
		t        domain.Template
		priority int
		payload  []byte
	)

	err := row.Scan(
		&t.ID, &t.Cron, &t.Timezone, &payload, &priority, &t.MaxRetries,
		&t.Active, &t.LastMaterializedUntil, &t.SyncHorizonDays, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Priority = domain.Priority(priority)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &t.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	return &t, nil
}

// GetTemplate retrieves a template by id.
func (s *Store) GetTemplate(ctx context.Context, id string) (*domain.Template, error) {
	query := fmt.Sprintf(`SELECT %s FROM templates WHERE id = $1`, templateColumns)
	row := s.pool.QueryRow(ctx, query, id)
	tpl, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: template %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return tpl, nil
}

// UpdateTemplate applies delta to the template named by id.
func (s *Store) UpdateTemplate(ctx context.Context, id string, delta domain.UpdateTemplateParams) error {
	if err := delta.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidPayload, err)
	}

	sets := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, field := range delta.UpdateMask {
		switch field {
		case "cron":
			sets = append(sets, "cron = "+next(*delta.Cron))
		case "timezone":
			sets = append(sets, "timezone = "+next(*delta.Timezone))
		case "payload":
			payload, err := json.Marshal(*delta.Payload)
			if err != nil {
				return fmt.Errorf("marshal payload: %w", err)
			}
			sets = append(sets, "payload = "+next(payload)+"::jsonb")
		case "priority":
			sets = append(sets, "priority = "+next(int(*delta.Priority)))
		case "max_retries":
			sets = append(sets, "max_retries = "+next(*delta.MaxRetries))
		case "active":
			sets = append(sets, "active = "+next(*delta.Active))
		case "last_materialized_until":
			sets = append(sets, "last_materialized_until = "+next(*delta.LastMaterializedUntil))
		case "sync_horizon_days":
			sets = append(sets, "sync_horizon_days = "+next(*delta.SyncHorizonDays))
		}
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE templates SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM templates WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check template existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: template %s", domain.ErrNotFound, id)
		}
		return domain.ErrNoRowsAffected
	}
	return nil
}

// DeleteTemplate removes a template outright; it does not touch jobs it
// already materialized.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: template %s", domain.ErrNotFound, id)
	}
	return nil
}

// ListActiveTemplates returns every template with active=true, for the
// materializer's scan.
func (s *Store) ListActiveTemplates(ctx context.Context) ([]domain.Template, error) {
	query := fmt.Sprintf(`SELECT %s FROM templates WHERE active = true`, templateColumns)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active templates: %w", err)
	}
	defer rows.Close()

	var templates []domain.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, *tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active templates: %w", err)
	}
	return templates, nil
}
