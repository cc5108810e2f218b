package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomo-connect/core"
	"github.com/trezcool/masomo-connect/core/messaging"
)

const conversationColumns = `id, phone, participant_type, participant_id, participant_name, last_message_at,
	last_message_from, last_inbound_at, unread_count, metadata, created_at, updated_at`

type conversationRow struct {
	ID              string         `db:"id"`
	Phone           string         `db:"phone"`
	ParticipantType string         `db:"participant_type"`
	ParticipantID   null.String    `db:"participant_id"`
	ParticipantName string         `db:"participant_name"`
	LastMessageAt   null.Time      `db:"last_message_at"`
	LastMessageFrom string         `db:"last_message_from"`
	LastInboundAt   null.Time      `db:"last_inbound_at"`
	UnreadCount     int            `db:"unread_count"`
	Metadata        types.JSONText `db:"metadata"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// messagingRepository stores conversations, messages & templates.
type messagingRepository struct {
	db *sqlx.DB
}

var _ messaging.Repository = (*messagingRepository)(nil) // interface compliance check

func NewMessagingRepository(db *sqlx.DB) *messagingRepository {
	return &messagingRepository{db: db}
}

func (repo messagingRepository) toConversationRow(conv messaging.Conversation) (conversationRow, error) {
	meta := conv.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return conversationRow{}, errors.Wrap(err, "encoding conversation metadata")
	}
	row := conversationRow{
		ID:              conv.ID,
		Phone:           conv.Phone,
		ParticipantType: string(conv.ParticipantType),
		ParticipantID:   nullUUID(conv.ParticipantID),
		ParticipantName: conv.ParticipantName,
		LastMessageFrom: string(conv.LastMessageFrom),
		UnreadCount:     conv.UnreadCount,
		Metadata:        types.JSONText(b),
		CreatedAt:       conv.CreatedAt.UTC(),
		UpdatedAt:       conv.UpdatedAt.UTC(),
	}
	if conv.LastMessageAt != nil {
		row.LastMessageAt = nullTime(*conv.LastMessageAt)
	}
	if conv.LastInboundAt != nil {
		row.LastInboundAt = nullTime(*conv.LastInboundAt)
	}
	return row, nil
}

func (repo messagingRepository) fromConversationRow(row conversationRow) (messaging.Conversation, error) {
	conv := messaging.Conversation{
		ID:              row.ID,
		Phone:           row.Phone,
		ParticipantType: messaging.ParticipantType(row.ParticipantType),
		ParticipantID:   row.ParticipantID.String,
		ParticipantName: row.ParticipantName,
		LastMessageAt:   timePtr(row.LastMessageAt),
		LastMessageFrom: messaging.Direction(row.LastMessageFrom),
		LastInboundAt:   timePtr(row.LastInboundAt),
		UnreadCount:     row.UnreadCount,
		Metadata:        map[string]string{},
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
	if len(row.Metadata) > 0 {
		if err := row.Metadata.Unmarshal(&conv.Metadata); err != nil {
			return messaging.Conversation{}, errors.Wrap(err, "decoding conversation metadata")
		}
	}
	return conv, nil
}

func (repo messagingRepository) trapConversationErr(err error, msg string) error {
	switch {
	case errors.Cause(err) == sql.ErrNoRows:
		return messaging.ErrNotFound
	case isUniqueViolation(err, "conversation_phone_key"):
		return messaging.ErrConversationExists
	}
	return errors.Wrap(err, msg)
}

func (repo messagingRepository) getConversationRow(ctx context.Context, q string, args ...interface{}) (messaging.Conversation, error) {
	var row conversationRow
	if err := sqlx.GetContext(ctx, repo.db, &row, q, args...); err != nil {
		return messaging.Conversation{}, repo.trapConversationErr(err, "fetching conversation")
	}
	return repo.fromConversationRow(row)
}

func (repo messagingRepository) CreateConversation(ctx context.Context, conv messaging.Conversation) (messaging.Conversation, error) {
	conv.ID = uuid.New().String()
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = now
	}

	r, err := repo.toConversationRow(conv)
	if err != nil {
		return messaging.Conversation{}, err
	}
	q := `INSERT INTO conversation (` + conversationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + conversationColumns
	return repo.getConversationRow(ctx, q,
		r.ID, r.Phone, r.ParticipantType, r.ParticipantID, r.ParticipantName, r.LastMessageAt,
		r.LastMessageFrom, r.LastInboundAt, r.UnreadCount, r.Metadata, r.CreatedAt, r.UpdatedAt)
}

func (repo messagingRepository) GetConversation(ctx context.Context, filter messaging.GetFilter) (messaging.Conversation, error) {
	switch {
	case filter.ID != "":
		if !isUUID(filter.ID) {
			return messaging.Conversation{}, messaging.ErrNotFound
		}
		return repo.getConversationRow(ctx, `SELECT `+conversationColumns+` FROM conversation WHERE id = $1`, filter.ID)
	case filter.Phone != "":
		return repo.getConversationRow(ctx, `SELECT `+conversationColumns+` FROM conversation WHERE phone = $1`, filter.Phone)
	}
	return messaging.Conversation{}, messaging.ErrNotFound
}

func (repo messagingRepository) QueryConversations(
	ctx context.Context,
	filter *messaging.QueryFilter,
	ordering []core.DBOrdering,
) ([]messaging.Conversation, error) {
	var where []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil && !filter.IsEmpty() {
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			where = append(where, fmt.Sprintf("(phone ILIKE %s OR participant_name ILIKE %s)", p, p))
		}
		if len(filter.ParticipantTypes) > 0 {
			pts := make(pq.StringArray, 0, len(filter.ParticipantTypes))
			for _, pt := range filter.ParticipantTypes {
				pts = append(pts, string(pt))
			}
			where = append(where, "participant_type = ANY("+arg(pts)+")")
		}
		if filter.Unread != nil {
			if *filter.Unread {
				where = append(where, "unread_count > 0")
			} else {
				where = append(where, "unread_count = 0")
			}
		}
	}

	q := `SELECT ` + conversationColumns + ` FROM conversation`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	if len(ordering) > 0 {
		orders := make([]string, 0, len(ordering)+1)
		for _, o := range ordering {
			orders = append(orders, o.String()+" NULLS LAST")
		}
		q += " ORDER BY " + strings.Join(append(orders, "id"), ", ")
	}

	var rows []conversationRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying conversations")
	}
	convs := make([]messaging.Conversation, 0, len(rows))
	for _, row := range rows {
		conv, err := repo.fromConversationRow(row)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	return convs, nil
}

func (repo messagingRepository) UpdateConversation(ctx context.Context, conv messaging.Conversation) (messaging.Conversation, error) {
	if !isUUID(conv.ID) {
		return messaging.Conversation{}, messaging.ErrNotFound
	}
	r, err := repo.toConversationRow(conv)
	if err != nil {
		return messaging.Conversation{}, err
	}
	q := `UPDATE conversation
		SET participant_type = $2, participant_id = $3, participant_name = $4, metadata = $5, updated_at = $6
		WHERE id = $1
		RETURNING ` + conversationColumns
	return repo.getConversationRow(ctx, q,
		r.ID, r.ParticipantType, r.ParticipantID, r.ParticipantName, r.Metadata, time.Now().UTC())
}

// TouchConversation is a single statement so that concurrent touches never move the timestamps backwards.
func (repo messagingRepository) TouchConversation(
	ctx context.Context,
	id string,
	dir messaging.Direction,
	at time.Time,
	unreadDelta int,
) (messaging.Conversation, error) {
	if !isUUID(id) {
		return messaging.Conversation{}, messaging.ErrNotFound
	}
	q := `UPDATE conversation SET
			last_message_from = CASE WHEN last_message_at IS NULL OR last_message_at <= $3
				THEN $2 ELSE last_message_from END,
			last_message_at = GREATEST(last_message_at, $3),
			last_inbound_at = CASE WHEN $2 = 'inbound'
				THEN GREATEST(last_inbound_at, $3) ELSE last_inbound_at END,
			unread_count = GREATEST(unread_count + $4, 0),
			updated_at = $5
		WHERE id = $1
		RETURNING ` + conversationColumns
	return repo.getConversationRow(ctx, q, id, string(dir), at.UTC(), unreadDelta, time.Now().UTC())
}

func (repo messagingRepository) MarkConversationRead(ctx context.Context, id string, at time.Time) (messaging.Conversation, error) {
	if !isUUID(id) {
		return messaging.Conversation{}, messaging.ErrNotFound
	}
	at = at.UTC()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return messaging.Conversation{}, errors.Wrap(err, "starting transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `UPDATE message
		SET status = $2, read_at = COALESCE(read_at, $3), updated_at = $3
		WHERE conversation_id = $1 AND direction = $4 AND status = $5`,
		id, string(messaging.StatusRead), at, string(messaging.DirectionInbound), string(messaging.StatusReceived))
	if err != nil {
		return messaging.Conversation{}, errors.Wrap(err, "marking messages read")
	}

	var row conversationRow
	q := `UPDATE conversation SET unread_count = 0, updated_at = $2 WHERE id = $1 RETURNING ` + conversationColumns
	if err = sqlx.GetContext(ctx, tx, &row, q, id, at); err != nil {
		return messaging.Conversation{}, repo.trapConversationErr(err, "resetting unread count")
	}
	if err = tx.Commit(); err != nil {
		return messaging.Conversation{}, errors.Wrap(err, "committing transaction")
	}
	return repo.fromConversationRow(row)
}
