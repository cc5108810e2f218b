package inmemdb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-connect/core"
	"github.com/trezcool/masomo-connect/core/messaging"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func newConversation(t *testing.T, repo *messagingRepository, phone string) messaging.Conversation {
	t.Helper()
	conv, err := repo.CreateConversation(context.Background(), messaging.Conversation{
		Phone:           phone,
		ParticipantType: messaging.ParticipantUnknown,
		Metadata:        map[string]string{messaging.MetaIdentifiedBy: "none"},
	})
	require.NoError(t, err)
	return conv
}

func TestMessagingRepository_CreateConversation(t *testing.T) {
	repo := NewMessagingRepository(Open())
	conv := newConversation(t, repo, "+243810000001")
	assert.NotEmpty(t, conv.ID)

	_, err := repo.CreateConversation(context.Background(), messaging.Conversation{Phone: "+243810000001"})
	assert.ErrorIs(t, err, messaging.ErrConversationExists)

	got, err := repo.GetConversation(context.Background(), messaging.GetFilter{Phone: "+243810000001"})
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	// returned values must not alias the stored ones
	got.Metadata["x"] = "y"
	again, _ := repo.GetConversation(context.Background(), messaging.GetFilter{ID: conv.ID})
	assert.NotContains(t, again.Metadata, "x")

	_, err = repo.GetConversation(context.Background(), messaging.GetFilter{ID: "missing"})
	assert.ErrorIs(t, err, messaging.ErrNotFound)
}

func TestMessagingRepository_TouchConversation(t *testing.T) {
	ctx := context.Background()
	repo := NewMessagingRepository(Open())
	conv := newConversation(t, repo, "+243810000002")

	conv, err := repo.TouchConversation(ctx, conv.ID, messaging.DirectionInbound, t0, 1)
	require.NoError(t, err)
	assert.Equal(t, t0, *conv.LastInboundAt)
	assert.Equal(t, t0, *conv.LastMessageAt)
	assert.Equal(t, messaging.DirectionInbound, conv.LastMessageFrom)
	assert.Equal(t, 1, conv.UnreadCount)

	// older inbound: nothing moves backwards
	conv, err = repo.TouchConversation(ctx, conv.ID, messaging.DirectionInbound, t0.Add(-time.Hour), 1)
	require.NoError(t, err)
	assert.Equal(t, t0, *conv.LastInboundAt)
	assert.Equal(t, t0, *conv.LastMessageAt)
	assert.Equal(t, 2, conv.UnreadCount)

	// outbound never touches the inbound time
	conv, err = repo.TouchConversation(ctx, conv.ID, messaging.DirectionOutbound, t0.Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Equal(t, t0, *conv.LastInboundAt)
	assert.Equal(t, t0.Add(time.Hour), *conv.LastMessageAt)
	assert.Equal(t, messaging.DirectionOutbound, conv.LastMessageFrom)

	conv, err = repo.TouchConversation(ctx, conv.ID, messaging.DirectionOutbound, t0, -5)
	require.NoError(t, err)
	assert.Equal(t, 0, conv.UnreadCount)

	_, err = repo.TouchConversation(ctx, "missing", messaging.DirectionInbound, t0, 1)
	assert.ErrorIs(t, err, messaging.ErrNotFound)
}

func TestMessagingRepository_TouchConversation_concurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewMessagingRepository(Open())
	conv := newConversation(t, repo, "+243810000003")

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.TouchConversation(ctx, conv.ID, messaging.DirectionInbound, t0.Add(time.Duration(i)*time.Minute), 1)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	conv, err := repo.GetConversation(ctx, messaging.GetFilter{ID: conv.ID})
	require.NoError(t, err)
	assert.Equal(t, t0.Add((n-1)*time.Minute), *conv.LastInboundAt)
	assert.Equal(t, n, conv.UnreadCount)
}

func TestMessagingRepository_QueryConversations(t *testing.T) {
	ctx := context.Background()
	repo := NewMessagingRepository(Open())
	c1 := newConversation(t, repo, "+243810000011")
	c2 := newConversation(t, repo, "+243810000012")
	c3 := newConversation(t, repo, "+243810000013") // never touched

	_, err := repo.TouchConversation(ctx, c1.ID, messaging.DirectionInbound, t0, 1)
	require.NoError(t, err)
	_, err = repo.TouchConversation(ctx, c2.ID, messaging.DirectionOutbound, t0.Add(time.Hour), 0)
	require.NoError(t, err)

	tests := []struct {
		name     string
		filter   *messaging.QueryFilter
		ordering []core.DBOrdering
		wantIDs  []string
	}{
		{name: "latest first, unset last", ordering: []core.DBOrdering{{Field: "last_message_at"}}, wantIDs: []string{c2.ID, c1.ID, c3.ID}},
		{
			name:     "oldest first, unset last",
			ordering: []core.DBOrdering{{Field: "last_message_at", Ascending: true}},
			wantIDs:  []string{c1.ID, c2.ID, c3.ID},
		},
		{
			name:     "unread",
			filter:   &messaging.QueryFilter{Unread: boolPtr(true)},
			ordering: []core.DBOrdering{{Field: "phone", Ascending: true}},
			wantIDs:  []string{c1.ID},
		},
		{
			name:     "search",
			filter:   &messaging.QueryFilter{Search: "0013"},
			ordering: []core.DBOrdering{{Field: "phone", Ascending: true}},
			wantIDs:  []string{c3.ID},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			convs, err := repo.QueryConversations(ctx, tt.filter, tt.ordering)
			require.NoError(t, err)
			ids := make([]string, 0, len(convs))
			for _, c := range convs {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func boolPtr(b bool) *bool { return &b }

func TestMessagingRepository_UpdateMessageStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewMessagingRepository(Open())
	conv := newConversation(t, repo, "+243810000021")

	msg, err := repo.CreateMessage(ctx, messaging.Message{
		ConversationID: conv.ID,
		Direction:      messaging.DirectionOutbound,
		Kind:           messaging.KindText,
		Content:        "hello",
		Status:         messaging.StatusQueued,
	})
	require.NoError(t, err)

	msg, err = repo.UpdateMessageStatus(ctx, msg.ID, messaging.StatusChange{
		From: []messaging.Status{messaging.StatusQueued}, To: messaging.StatusSent, ProviderID: "SM1", At: t0,
	})
	require.NoError(t, err)
	assert.Equal(t, messaging.StatusSent, msg.Status)
	assert.Equal(t, "SM1", msg.ProviderID)

	_, err = repo.UpdateMessageStatus(ctx, msg.ID, messaging.StatusChange{
		From: []messaging.Status{messaging.StatusQueued}, To: messaging.StatusSent, At: t0,
	})
	assert.ErrorIs(t, err, messaging.ErrStatusConflict)

	msg, err = repo.UpdateMessageStatus(ctx, msg.ID, messaging.StatusChange{
		From: messaging.TransitionSources(messaging.StatusRead), To: messaging.StatusRead, At: t0.Add(time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, "SM1", msg.ProviderID)
	require.NotNil(t, msg.ReadAt)
	assert.Equal(t, t0.Add(time.Minute), *msg.ReadAt)

	_, err = repo.CreateMessage(ctx, messaging.Message{ConversationID: conv.ID, ProviderID: "SM1"})
	assert.ErrorIs(t, err, messaging.ErrDuplicateMessage)

	_, err = repo.UpdateMessageStatus(ctx, "missing", messaging.StatusChange{To: messaging.StatusSent})
	assert.ErrorIs(t, err, messaging.ErrNotFound)
}

func TestMessagingRepository_MarkConversationRead(t *testing.T) {
	ctx := context.Background()
	repo := NewMessagingRepository(Open())
	conv := newConversation(t, repo, "+243810000031")

	for i := 0; i < 3; i++ {
		_, err := repo.CreateMessage(ctx, messaging.Message{
			ConversationID: conv.ID,
			Direction:      messaging.DirectionInbound,
			Kind:           messaging.KindText,
			Status:         messaging.StatusReceived,
			CreatedAt:      t0.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
		_, err = repo.TouchConversation(ctx, conv.ID, messaging.DirectionInbound, t0.Add(time.Duration(i)*time.Second), 1)
		require.NoError(t, err)
	}

	conv, err := repo.MarkConversationRead(ctx, conv.ID, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, conv.UnreadCount)

	msgs, err := repo.QueryMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		assert.Equal(t, t0.Add(time.Duration(i)*time.Second), m.CreatedAt, "oldest first")
		assert.Equal(t, messaging.StatusRead, m.Status)
		assert.NotNil(t, m.ReadAt)
	}
}

func TestMessagingRepository_templates(t *testing.T) {
	ctx := context.Background()
	repo := NewMessagingRepository(Open())

	_, err := repo.CreateTemplate(ctx, messaging.Template{Name: "welcome", Body: "Hi {{1}}", Status: messaging.TemplatePending})
	require.NoError(t, err)
	_, err = repo.CreateTemplate(ctx, messaging.Template{Name: "welcome"})
	assert.ErrorIs(t, err, messaging.ErrTemplateExists)

	_, err = repo.UpdateOrCreateTemplate(ctx, messaging.Template{Name: "welcome", Body: "Hello {{1}}", Status: messaging.TemplateApproved})
	require.NoError(t, err)
	_, err = repo.UpdateOrCreateTemplate(ctx, messaging.Template{Name: "bye", Body: "Bye", Status: messaging.TemplatePending})
	require.NoError(t, err)

	tmpl, err := repo.GetTemplate(ctx, "welcome")
	require.NoError(t, err)
	assert.Equal(t, "Hello {{1}}", tmpl.Body)

	approved, err := repo.QueryTemplates(ctx, &messaging.TemplateQueryFilter{Status: messaging.TemplateApproved})
	require.NoError(t, err)
	assert.Len(t, approved, 1)

	all, err := repo.QueryTemplates(ctx, nil)
	require.NoError(t, err)
	if assert.Len(t, all, 2) {
		assert.Equal(t, "bye", all[0].Name)
	}

	_, err = repo.GetTemplate(ctx, "missing")
	assert.ErrorIs(t, err, messaging.ErrNotFound)
}
