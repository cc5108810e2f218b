package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-connect/core/messaging"
)

const messageColumns = `id, conversation_id, provider_id, direction, kind, content, media_url, template_name,
	template_vars, status, error_code, error_message, sent_by, created_at, updated_at, read_at`

type messageRow struct {
	ID             string         `db:"id"`
	ConversationID string         `db:"conversation_id"`
	ProviderID     null.String    `db:"provider_id"`
	Direction      string         `db:"direction"`
	Kind           string         `db:"kind"`
	Content        string         `db:"content"`
	MediaURL       string         `db:"media_url"`
	TemplateName   string         `db:"template_name"`
	TemplateVars   pq.StringArray `db:"template_vars"`
	Status         string         `db:"status"`
	ErrorCode      string         `db:"error_code"`
	ErrorMessage   string         `db:"error_message"`
	SentBy         null.String    `db:"sent_by"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
	ReadAt         null.Time      `db:"read_at"`
}

func (repo messagingRepository) toMessageRow(msg messaging.Message) messageRow {
	row := messageRow{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		ProviderID:     nullString(msg.ProviderID),
		Direction:      string(msg.Direction),
		Kind:           string(msg.Kind),
		Content:        msg.Content,
		MediaURL:       msg.MediaURL,
		TemplateName:   msg.TemplateName,
		TemplateVars:   pq.StringArray(msg.TemplateVariables),
		Status:         string(msg.Status),
		ErrorCode:      msg.ErrorCode,
		ErrorMessage:   msg.ErrorMessage,
		SentBy:         nullUUID(msg.SentBy),
		CreatedAt:      msg.CreatedAt.UTC(),
		UpdatedAt:      msg.UpdatedAt.UTC(),
	}
	if msg.ReadAt != nil {
		row.ReadAt = nullTime(*msg.ReadAt)
	}
	return row
}

func (repo messagingRepository) fromMessageRow(row messageRow) messaging.Message {
	msg := messaging.Message{
		ID:             row.ID,
		ConversationID: row.ConversationID,
		ProviderID:     row.ProviderID.String,
		Direction:      messaging.Direction(row.Direction),
		Kind:           messaging.Kind(row.Kind),
		Content:        row.Content,
		MediaURL:       row.MediaURL,
		TemplateName:   row.TemplateName,
		Status:         messaging.Status(row.Status),
		ErrorCode:      row.ErrorCode,
		ErrorMessage:   row.ErrorMessage,
		SentBy:         row.SentBy.String,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
		ReadAt:         timePtr(row.ReadAt),
	}
	if len(row.TemplateVars) > 0 {
		msg.TemplateVariables = row.TemplateVars
	}
	return msg
}

func (repo messagingRepository) trapMessageErr(err error, msg string) error {
	switch {
	case errors.Cause(err) == sql.ErrNoRows:
		return messaging.ErrNotFound
	case isUniqueViolation(err, "message_provider_id_key"):
		return messaging.ErrDuplicateMessage
	}
	return errors.Wrap(err, msg)
}

func (repo messagingRepository) getMessageRow(ctx context.Context, q string, args ...interface{}) (messaging.Message, error) {
	var row messageRow
	if err := sqlx.GetContext(ctx, repo.db, &row, q, args...); err != nil {
		return messaging.Message{}, repo.trapMessageErr(err, "fetching message")
	}
	return repo.fromMessageRow(row), nil
}

func (repo messagingRepository) CreateMessage(ctx context.Context, msg messaging.Message) (messaging.Message, error) {
	if !isUUID(msg.ConversationID) {
		return messaging.Message{}, messaging.ErrNotFound
	}
	msg.ID = uuid.New().String()
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	if msg.UpdatedAt.IsZero() {
		msg.UpdatedAt = now
	}

	r := repo.toMessageRow(msg)
	q := `INSERT INTO message (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING ` + messageColumns
	return repo.getMessageRow(ctx, q,
		r.ID, r.ConversationID, r.ProviderID, r.Direction, r.Kind, r.Content, r.MediaURL, r.TemplateName,
		r.TemplateVars, r.Status, r.ErrorCode, r.ErrorMessage, r.SentBy, r.CreatedAt, r.UpdatedAt, r.ReadAt)
}

func (repo messagingRepository) GetMessage(ctx context.Context, filter messaging.MessageGetFilter) (messaging.Message, error) {
	switch {
	case filter.ID != "":
		if !isUUID(filter.ID) {
			return messaging.Message{}, messaging.ErrNotFound
		}
		return repo.getMessageRow(ctx, `SELECT `+messageColumns+` FROM message WHERE id = $1`, filter.ID)
	case filter.ProviderID != "":
		return repo.getMessageRow(ctx, `SELECT `+messageColumns+` FROM message WHERE provider_id = $1`, filter.ProviderID)
	}
	return messaging.Message{}, messaging.ErrNotFound
}

func (repo messagingRepository) QueryMessages(ctx context.Context, conversationID string) ([]messaging.Message, error) {
	if !isUUID(conversationID) {
		return []messaging.Message{}, nil
	}
	var rows []messageRow
	q := `SELECT ` + messageColumns + ` FROM message WHERE conversation_id = $1 ORDER BY created_at, id`
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, conversationID); err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	msgs := make([]messaging.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, repo.fromMessageRow(row))
	}
	return msgs, nil
}

// UpdateMessageStatus is a conditional update: the row is only changed while its status is one of chg.From.
func (repo messagingRepository) UpdateMessageStatus(ctx context.Context, id string, chg messaging.StatusChange) (messaging.Message, error) {
	if !isUUID(id) {
		return messaging.Message{}, messaging.ErrNotFound
	}
	from := make(pq.StringArray, 0, len(chg.From))
	for _, s := range chg.From {
		from = append(from, string(s))
	}
	at := chg.At.UTC()
	if chg.At.IsZero() {
		at = time.Now().UTC()
	}

	q := `UPDATE message SET
			status = $2,
			provider_id = COALESCE($3, provider_id),
			error_code = $4,
			error_message = $5,
			read_at = CASE WHEN $2 = 'read' THEN COALESCE(read_at, $6) ELSE read_at END,
			updated_at = $6
		WHERE id = $1 AND status = ANY($7)
		RETURNING ` + messageColumns
	var row messageRow
	err := sqlx.GetContext(ctx, repo.db, &row, q,
		id, string(chg.To), nullString(chg.ProviderID), chg.ErrorCode, chg.ErrorMessage, at, from)
	if err == nil {
		return repo.fromMessageRow(row), nil
	}
	if errors.Cause(err) != sql.ErrNoRows {
		return messaging.Message{}, repo.trapMessageErr(err, "updating message status")
	}

	var exists bool
	if err = sqlx.GetContext(ctx, repo.db, &exists, `SELECT EXISTS (SELECT 1 FROM message WHERE id = $1)`, id); err != nil {
		return messaging.Message{}, errors.Wrap(err, "checking message")
	}
	if !exists {
		return messaging.Message{}, messaging.ErrNotFound
	}
	return messaging.Message{}, messaging.ErrStatusConflict
}
