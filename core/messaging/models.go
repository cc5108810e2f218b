package messaging

import (
	"strings"
	"time"

	"github.com/trezcool/masomo-connect/core"
)

type (
	Direction       string
	Kind            string
	Status          string
	ParticipantType string
)

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"

	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindDocument Kind = "document"
	KindAudio    Kind = "audio"
	KindVideo    Kind = "video"
	KindLocation Kind = "location"

	// outbound
	StatusQueued    Status = "queued"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
	// inbound
	StatusReceived Status = "received"

	ParticipantStudent  ParticipantType = "student"
	ParticipantTeacher  ParticipantType = "teacher"
	ParticipantEmployee ParticipantType = "employee"
	ParticipantParent   ParticipantType = "parent"
	ParticipantUnknown  ParticipantType = "unknown"

	// Conversation.Metadata keys
	MetaIdentifiedBy = "identified_by"
	MetaUserID       = "user_id"
	MetaRole         = "role"
	MetaProfileName  = "profile_name"
)

var (
	ParticipantTypes = []ParticipantType{
		ParticipantStudent, ParticipantTeacher, ParticipantEmployee, ParticipantParent, ParticipantUnknown,
	}

	// {from: allowed next statuses}
	statusTransitions = map[Status][]Status{
		StatusQueued:    {StatusSent, StatusDelivered, StatusRead, StatusFailed},
		StatusSent:      {StatusDelivered, StatusRead, StatusFailed},
		StatusDelivered: {StatusRead},
		StatusReceived:  {StatusRead},
	}
)

// CanTransition tells whether a message status may move from `from` to `to`.
// Statuses only move forward; a failed message is re-queued through Service.Retry only.
func CanTransition(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionSources returns all the statuses that may transition to `to`.
func TransitionSources(to Status) []Status {
	sources := make([]Status, 0, 3)
	for _, from := range []Status{StatusQueued, StatusSent, StatusDelivered, StatusReceived} {
		if CanTransition(from, to) {
			sources = append(sources, from)
		}
	}
	return sources
}

// Conversation is an exchange with one participant, identified by their phone number.
type Conversation struct {
	ID              string            `json:"id"`
	Phone           string            `json:"phone"` // E.164
	ParticipantType ParticipantType   `json:"participant_type"`
	ParticipantID   string            `json:"participant_id,omitempty"`
	ParticipantName string            `json:"participant_name"`
	LastMessageAt   *time.Time        `json:"last_message_at"`             // UTC
	LastMessageFrom Direction         `json:"last_message_from,omitempty"` // direction of the message at LastMessageAt
	LastInboundAt   *time.Time        `json:"last_inbound_at"`             // UTC
	UnreadCount     int               `json:"unread_count"`
	Metadata        map[string]string `json:"metadata"`
	CreatedAt       time.Time         `json:"created_at"` // UTC
	UpdatedAt       time.Time         `json:"updated_at"` // UTC
}

func (c Conversation) Window(now time.Time) WindowDecision {
	return Evaluate(c.LastInboundAt, now)
}

type Message struct {
	ID                string     `json:"id"`
	ConversationID    string     `json:"conversation_id"`
	ProviderID        string     `json:"provider_id,omitempty"`
	Direction         Direction  `json:"direction"`
	Kind              Kind       `json:"kind"`
	Content           string     `json:"content"`
	MediaURL          string     `json:"media_url,omitempty"`
	TemplateName      string     `json:"template_name,omitempty"`
	TemplateVariables []string   `json:"template_variables,omitempty"`
	Status            Status     `json:"status"`
	ErrorCode         string     `json:"error_code,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	SentBy            string     `json:"sent_by,omitempty"`
	CreatedAt         time.Time  `json:"created_at"` // UTC
	UpdatedAt         time.Time  `json:"updated_at"` // UTC
	ReadAt            *time.Time `json:"read_at"`    // UTC
}

func (m Message) IsOutbound() bool { return m.Direction == DirectionOutbound }
func (m Message) IsTemplate() bool { return m.TemplateName != "" }

// StatusChange is applied to a message only while its status is still one of From.
type StatusChange struct {
	From         []Status
	To           Status
	ProviderID   string // only set when not empty
	ErrorCode    string
	ErrorMessage string
	At           time.Time
}

// Participant is who a phone number belongs to.
type Participant struct {
	Type     ParticipantType
	ID       string
	Name     string
	Metadata map[string]string
}

// InboundMessage is a message received from a participant through the provider.
type InboundMessage struct {
	ProviderID  string
	From        string
	ProfileName string
	Kind        Kind
	Content     string
	MediaURL    string
	ReceivedAt  time.Time // zero: now
}

// StatusUpdate is a delivery status reported by the provider for an outbound message.
type StatusUpdate struct {
	ProviderID   string
	Status       string // provider status
	ErrorCode    string
	ErrorMessage string
	At           time.Time // zero: now
}

type GetFilter struct {
	ID    string
	Phone string
}

type MessageGetFilter struct {
	ID         string
	ProviderID string
}

type QueryFilter struct {
	Search           string            `query:"search"`
	ParticipantTypes []ParticipantType `query:"participant_type"`
	Unread           *bool             `query:"unread"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.ParticipantTypes == nil && qf.Unread == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// Matches applies the filter to a conversation (used by in-memory stores).
func (qf *QueryFilter) Matches(conv Conversation) bool {
	if qf == nil {
		return true
	}
	if qf.Search != "" && !containsFold(qf.Search, conv.Phone, conv.ParticipantName) {
		return false
	}
	if len(qf.ParticipantTypes) > 0 {
		var found bool
		for _, pt := range qf.ParticipantTypes {
			if conv.ParticipantType == pt {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if qf.Unread != nil && (conv.UnreadCount > 0) != *qf.Unread {
		return false
	}
	return true
}

type TemplateQueryFilter struct {
	Status TemplateStatus `query:"status"`
}

// ConversationOrderings maps the API ordering fields to their storage columns.
var ConversationOrderings = map[string]string{
	"last_message_at":  "last_message_at",
	"last_inbound_at":  "last_inbound_at",
	"created_at":       "created_at",
	"unread_count":     "unread_count",
	"participant_name": "participant_name",
	"phone":            "phone",
}

func containsFold(substr string, values ...string) bool {
	substr = strings.ToLower(substr)
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), substr) {
			return true
		}
	}
	return false
}
