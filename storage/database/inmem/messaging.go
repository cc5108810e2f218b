package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/masomo-connect/core"
	"github.com/trezcool/masomo-connect/core/messaging"
)

type messagingRepository struct {
	db *messagingTables
}

var _ messaging.Repository = (*messagingRepository)(nil) // interface compliance check

func NewMessagingRepository(db *DB) *messagingRepository {
	return &messagingRepository{db: db.messaging}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	tm := t.UTC()
	return &tm
}

func copyConversation(c messaging.Conversation) messaging.Conversation {
	meta := make(map[string]string, len(c.Metadata))
	for k, v := range c.Metadata {
		meta[k] = v
	}
	c.Metadata = meta
	c.LastMessageAt = copyTime(c.LastMessageAt)
	c.LastInboundAt = copyTime(c.LastInboundAt)
	return c
}

func copyMessage(m messaging.Message) messaging.Message {
	if m.TemplateVariables != nil {
		m.TemplateVariables = append([]string{}, m.TemplateVariables...)
	}
	m.ReadAt = copyTime(m.ReadAt)
	return m
}

// conversations

func (repo *messagingRepository) CreateConversation(_ context.Context, conv messaging.Conversation) (messaging.Conversation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, c := range repo.db.conversations {
		if c.Phone == conv.Phone {
			return messaging.Conversation{}, messaging.ErrConversationExists
		}
	}
	conv = copyConversation(conv)
	conv.ID = uuid.New().String()
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = now
	}
	repo.db.conversations[conv.ID] = &conv
	return copyConversation(conv), nil
}

func (repo *messagingRepository) GetConversation(_ context.Context, filter messaging.GetFilter) (messaging.Conversation, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if c, ok := repo.db.conversations[filter.ID]; ok {
			return copyConversation(*c), nil
		}
		return messaging.Conversation{}, messaging.ErrNotFound
	}
	if filter.Phone != "" {
		for _, c := range repo.db.conversations {
			if c.Phone == filter.Phone {
				return copyConversation(*c), nil
			}
		}
	}
	return messaging.Conversation{}, messaging.ErrNotFound
}

func (repo *messagingRepository) QueryConversations(
	_ context.Context,
	filter *messaging.QueryFilter,
	ordering []core.DBOrdering,
) ([]messaging.Conversation, error) {
	repo.db.RLock()
	convs := make([]messaging.Conversation, 0, len(repo.db.conversations))
	for _, c := range repo.db.conversations {
		if filter.Matches(*c) {
			convs = append(convs, copyConversation(*c))
		}
	}
	repo.db.RUnlock()

	sort.SliceStable(convs, func(i, j int) bool {
		for _, o := range ordering {
			if cmp := compareConversations(convs[i], convs[j], o); cmp != 0 {
				return cmp < 0
			}
		}
		return convs[i].ID < convs[j].ID
	})
	return convs, nil
}

// compareConversations sorts unset times last, whatever the direction.
func compareConversations(a, b messaging.Conversation, o core.DBOrdering) int {
	var cmp int
	switch o.Field {
	case "last_message_at", "last_inbound_at":
		ta, tb := a.LastMessageAt, b.LastMessageAt
		if o.Field == "last_inbound_at" {
			ta, tb = a.LastInboundAt, b.LastInboundAt
		}
		switch {
		case ta == nil && tb == nil:
			return 0
		case ta == nil:
			return 1
		case tb == nil:
			return -1
		}
		cmp = compareTimes(*ta, *tb)
	case "created_at":
		cmp = compareTimes(a.CreatedAt, b.CreatedAt)
	case "unread_count":
		cmp = a.UnreadCount - b.UnreadCount
	case "participant_name":
		cmp = compareStrings(a.ParticipantName, b.ParticipantName)
	case "phone":
		cmp = compareStrings(a.Phone, b.Phone)
	}
	if !o.Ascending {
		cmp = -cmp
	}
	return cmp
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (repo *messagingRepository) UpdateConversation(_ context.Context, conv messaging.Conversation) (messaging.Conversation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	c, ok := repo.db.conversations[conv.ID]
	if !ok {
		return messaging.Conversation{}, messaging.ErrNotFound
	}
	conv = copyConversation(conv)
	c.ParticipantType = conv.ParticipantType
	c.ParticipantID = conv.ParticipantID
	c.ParticipantName = conv.ParticipantName
	c.Metadata = conv.Metadata
	c.UpdatedAt = time.Now().UTC()
	return copyConversation(*c), nil
}

func (repo *messagingRepository) TouchConversation(
	_ context.Context,
	id string,
	dir messaging.Direction,
	at time.Time,
	unreadDelta int,
) (messaging.Conversation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	c, ok := repo.db.conversations[id]
	if !ok {
		return messaging.Conversation{}, messaging.ErrNotFound
	}
	at = at.UTC()
	if c.LastMessageAt == nil || !c.LastMessageAt.After(at) {
		c.LastMessageAt = copyTime(&at)
		c.LastMessageFrom = dir
	}
	if dir == messaging.DirectionInbound && (c.LastInboundAt == nil || c.LastInboundAt.Before(at)) {
		c.LastInboundAt = copyTime(&at)
	}
	if c.UnreadCount += unreadDelta; c.UnreadCount < 0 {
		c.UnreadCount = 0
	}
	c.UpdatedAt = time.Now().UTC()
	return copyConversation(*c), nil
}

func (repo *messagingRepository) MarkConversationRead(_ context.Context, id string, at time.Time) (messaging.Conversation, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	c, ok := repo.db.conversations[id]
	if !ok {
		return messaging.Conversation{}, messaging.ErrNotFound
	}
	at = at.UTC()
	for _, m := range repo.db.messages {
		if m.ConversationID == id && m.Direction == messaging.DirectionInbound && m.Status == messaging.StatusReceived {
			m.Status = messaging.StatusRead
			if m.ReadAt == nil {
				m.ReadAt = copyTime(&at)
			}
			m.UpdatedAt = at
		}
	}
	c.UnreadCount = 0
	c.UpdatedAt = at
	return copyConversation(*c), nil
}

// messages

func (repo *messagingRepository) CreateMessage(_ context.Context, msg messaging.Message) (messaging.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.conversations[msg.ConversationID]; !ok {
		return messaging.Message{}, messaging.ErrNotFound
	}
	if msg.ProviderID != "" {
		for _, m := range repo.db.messages {
			if m.ProviderID == msg.ProviderID {
				return messaging.Message{}, messaging.ErrDuplicateMessage
			}
		}
	}
	msg = copyMessage(msg)
	msg.ID = uuid.New().String()
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	if msg.UpdatedAt.IsZero() {
		msg.UpdatedAt = now
	}
	repo.db.messages[msg.ID] = &msg
	return copyMessage(msg), nil
}

func (repo *messagingRepository) GetMessage(_ context.Context, filter messaging.MessageGetFilter) (messaging.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if m, ok := repo.db.messages[filter.ID]; ok {
			return copyMessage(*m), nil
		}
		return messaging.Message{}, messaging.ErrNotFound
	}
	if filter.ProviderID != "" {
		for _, m := range repo.db.messages {
			if m.ProviderID == filter.ProviderID {
				return copyMessage(*m), nil
			}
		}
	}
	return messaging.Message{}, messaging.ErrNotFound
}

func (repo *messagingRepository) QueryMessages(_ context.Context, conversationID string) ([]messaging.Message, error) {
	repo.db.RLock()
	msgs := make([]messaging.Message, 0)
	for _, m := range repo.db.messages {
		if m.ConversationID == conversationID {
			msgs = append(msgs, copyMessage(*m))
		}
	}
	repo.db.RUnlock()

	sort.Slice(msgs, func(i, j int) bool {
		if cmp := compareTimes(msgs[i].CreatedAt, msgs[j].CreatedAt); cmp != 0 {
			return cmp < 0
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs, nil
}

func (repo *messagingRepository) UpdateMessageStatus(_ context.Context, id string, chg messaging.StatusChange) (messaging.Message, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	m, ok := repo.db.messages[id]
	if !ok {
		return messaging.Message{}, messaging.ErrNotFound
	}
	var allowed bool
	for _, s := range chg.From {
		if m.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return messaging.Message{}, messaging.ErrStatusConflict
	}

	at := chg.At.UTC()
	if chg.At.IsZero() {
		at = time.Now().UTC()
	}
	m.Status = chg.To
	if chg.ProviderID != "" {
		m.ProviderID = chg.ProviderID
	}
	m.ErrorCode = chg.ErrorCode
	m.ErrorMessage = chg.ErrorMessage
	if chg.To == messaging.StatusRead && m.ReadAt == nil {
		m.ReadAt = copyTime(&at)
	}
	m.UpdatedAt = at
	return copyMessage(*m), nil
}

// templates

func (repo *messagingRepository) saveTemplate(tmpl messaging.Template) messaging.Template {
	now := time.Now().UTC()
	if tmpl.CreatedAt.IsZero() {
		tmpl.CreatedAt = now
	}
	if tmpl.UpdatedAt.IsZero() {
		tmpl.UpdatedAt = now
	}
	repo.db.templates[tmpl.Name] = &tmpl
	return tmpl
}

func (repo *messagingRepository) CreateTemplate(_ context.Context, tmpl messaging.Template) (messaging.Template, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.templates[tmpl.Name]; ok {
		return messaging.Template{}, messaging.ErrTemplateExists
	}
	return repo.saveTemplate(tmpl), nil
}

func (repo *messagingRepository) UpdateOrCreateTemplate(_ context.Context, tmpl messaging.Template) (messaging.Template, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if orig, ok := repo.db.templates[tmpl.Name]; ok {
		tmpl.CreatedAt = orig.CreatedAt
		tmpl.UpdatedAt = time.Now().UTC()
	}
	return repo.saveTemplate(tmpl), nil
}

func (repo *messagingRepository) GetTemplate(_ context.Context, name string) (messaging.Template, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if tmpl, ok := repo.db.templates[name]; ok {
		return *tmpl, nil
	}
	return messaging.Template{}, messaging.ErrNotFound
}

func (repo *messagingRepository) QueryTemplates(_ context.Context, filter *messaging.TemplateQueryFilter) ([]messaging.Template, error) {
	repo.db.RLock()
	tmpls := make([]messaging.Template, 0, len(repo.db.templates))
	for _, tmpl := range repo.db.templates {
		if filter == nil || filter.Status == "" || tmpl.Status == filter.Status {
			tmpls = append(tmpls, *tmpl)
		}
	}
	repo.db.RUnlock()

	sort.Slice(tmpls, func(i, j int) bool { return tmpls[i].Name < tmpls[j].Name })
	return tmpls, nil
}
