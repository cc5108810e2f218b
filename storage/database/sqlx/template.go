package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-connect/core/messaging"
)

const templateColumns = `name, content_sid, body, language, category, status, created_at, updated_at`

type templateRow struct {
	Name       string    `db:"name"`
	ContentSID string    `db:"content_sid"`
	Body       string    `db:"body"`
	Language   string    `db:"language"`
	Category   string    `db:"category"`
	Status     string    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (repo messagingRepository) fromTemplateRow(row templateRow) messaging.Template {
	return messaging.Template{
		Name:       row.Name,
		ContentSID: row.ContentSID,
		Body:       row.Body,
		Language:   row.Language,
		Category:   messaging.TemplateCategory(row.Category),
		Status:     messaging.TemplateStatus(row.Status),
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
}

func (repo messagingRepository) trapTemplateErr(err error, msg string) error {
	switch {
	case errors.Cause(err) == sql.ErrNoRows:
		return messaging.ErrNotFound
	case isUniqueViolation(err, "message_template_pkey"):
		return messaging.ErrTemplateExists
	}
	return errors.Wrap(err, msg)
}

func (repo messagingRepository) saveTemplate(ctx context.Context, q string, tmpl messaging.Template) (messaging.Template, error) {
	now := time.Now().UTC()
	if tmpl.CreatedAt.IsZero() {
		tmpl.CreatedAt = now
	}
	if tmpl.UpdatedAt.IsZero() {
		tmpl.UpdatedAt = now
	}

	var row templateRow
	err := sqlx.GetContext(ctx, repo.db, &row, q,
		tmpl.Name, tmpl.ContentSID, tmpl.Body, tmpl.Language, string(tmpl.Category), string(tmpl.Status),
		tmpl.CreatedAt.UTC(), tmpl.UpdatedAt)
	if err != nil {
		return messaging.Template{}, repo.trapTemplateErr(err, "saving template")
	}
	return repo.fromTemplateRow(row), nil
}

func (repo messagingRepository) CreateTemplate(ctx context.Context, tmpl messaging.Template) (messaging.Template, error) {
	q := `INSERT INTO message_template (` + templateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + templateColumns
	return repo.saveTemplate(ctx, q, tmpl)
}

func (repo messagingRepository) UpdateOrCreateTemplate(ctx context.Context, tmpl messaging.Template) (messaging.Template, error) {
	q := `INSERT INTO message_template (` + templateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (name) DO UPDATE SET
			content_sid = EXCLUDED.content_sid,
			body = EXCLUDED.body,
			language = EXCLUDED.language,
			category = EXCLUDED.category,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + templateColumns
	return repo.saveTemplate(ctx, q, tmpl)
}

func (repo messagingRepository) GetTemplate(ctx context.Context, name string) (messaging.Template, error) {
	var row templateRow
	q := `SELECT ` + templateColumns + ` FROM message_template WHERE name = $1`
	if err := sqlx.GetContext(ctx, repo.db, &row, q, name); err != nil {
		return messaging.Template{}, repo.trapTemplateErr(err, "fetching template")
	}
	return repo.fromTemplateRow(row), nil
}

func (repo messagingRepository) QueryTemplates(ctx context.Context, filter *messaging.TemplateQueryFilter) ([]messaging.Template, error) {
	q := `SELECT ` + templateColumns + ` FROM message_template`
	var args []interface{}
	if filter != nil && filter.Status != "" {
		q += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	q += ` ORDER BY name`

	var rows []templateRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying templates")
	}
	tmpls := make([]messaging.Template, 0, len(rows))
	for _, row := range rows {
		tmpls = append(tmpls, repo.fromTemplateRow(row))
	}
	return tmpls, nil
}
