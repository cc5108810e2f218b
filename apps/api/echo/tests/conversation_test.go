package tests

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/masomo-connect/apps/api/echo"
	"github.com/trezcool/masomo-connect/core/messaging"
	"github.com/trezcool/masomo-connect/core/user"
	"github.com/trezcool/masomo-connect/tests"
)

func timePtr(t time.Time) *time.Time { return &t }

func operatorToken(t *testing.T) (user.User, string) {
	usr := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@masomo.cd", "+243810000001", "", []string{user.RoleTeacher}, true)
	return usr, getToken(t, usr)
}

func TestConversationAPI_permissions(t *testing.T) {
	server := setup(t)

	parent := testutil.CreateUser(t, usrRepo, "Parent", "parent", "parent@masomo.cd", "+243810000002", "", []string{user.RoleParent}, true)
	former := testutil.CreateUser(t, usrRepo, "Former", "former", "former@masomo.cd", "", "", []string{user.RoleStaff}, false)
	_, token := operatorToken(t)

	tests := []httpTest{
		{name: "no token", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "parent", token: getToken(t, parent), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "deactivated staff", token: getToken(t, former), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "teacher", token: token, wantCode: http.StatusOK, wantData: []byte(`[]`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/conversations", tt.token)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestConversationAPI_query(t *testing.T) {
	server := setup(t)
	_, token := operatorToken(t)

	now := time.Now().UTC()
	old := testutil.CreateConversation(t, msgRepo, "+243810000010", messaging.ParticipantParent, timePtr(now.Add(-48*time.Hour)))
	recent := testutil.CreateConversation(t, msgRepo, "+243810000011", messaging.ParticipantStudent, timePtr(now.Add(-time.Hour)))
	fresh := testutil.CreateConversation(t, msgRepo, "+243810000012", messaging.ParticipantUnknown, nil)

	tests := []struct {
		name    string
		query   string
		wantIDs []string
	}{
		{name: "default ordering", query: "", wantIDs: []string{recent.ID, old.ID, fresh.ID}},
		{name: "oldest message first", query: "?ordering=last_message_at", wantIDs: []string{old.ID, recent.ID, fresh.ID}},
		{name: "unknown ordering field", query: "?ordering=lol", wantIDs: []string{recent.ID, old.ID, fresh.ID}},
		{name: "participant types", query: "?participant_type=parent,student&ordering=phone", wantIDs: []string{old.ID, recent.ID}},
		{name: "search", query: "?search=0012", wantIDs: []string{fresh.ID}},
		{name: "unread", query: "?unread=false", wantIDs: []string{fresh.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/conversations"+tt.query, token)
			server.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var convs []messaging.Conversation
			unmarchallObj(t, rec.Body.Bytes(), &convs)
			ids := make([]string, 0, len(convs))
			for _, conv := range convs {
				ids = append(ids, conv.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestConversationAPI_create(t *testing.T) {
	server := setup(t)
	_, token := operatorToken(t)

	tests := []httpTest{
		{name: "no phone", body: []byte(`{}`), wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"phone": "this field is required"})},
		{name: "local number", body: []byte(`{"phone": "0810 000 020"}`), wantCode: http.StatusCreated, extra: "+243810000020"},
		{name: "already started", body: []byte(`{"phone": "+243810000020"}`), wantCode: http.StatusCreated, extra: "+243810000020"},
		{name: "known user", body: []byte(`{"phone": "+243810000001"}`), wantCode: http.StatusCreated, extra: "+243810000001"},
	}
	var firstID string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/conversations", token, tt.body)
			server.ServeHTTP(rec, req)

			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			checkCode(t, tt, rec)

			var resp ConversationResponse
			unmarchallObj(t, rec.Body.Bytes(), &resp)
			assert.Equal(t, tt.extra, resp.Phone)
			assert.Equal(t, messaging.ReasonNoInboundYet, resp.Window.Reason)
			assert.True(t, resp.Window.TemplateRequired)

			switch tt.name {
			case "local number":
				firstID = resp.ID
				assert.Equal(t, messaging.ParticipantUnknown, resp.ParticipantType)
			case "already started":
				assert.Equal(t, firstID, resp.ID)
			case "known user":
				assert.Equal(t, messaging.ParticipantTeacher, resp.ParticipantType)
				assert.Equal(t, "Teacher", resp.ParticipantName)
			}
		})
	}
}

func TestConversationAPI_retrieve(t *testing.T) {
	server := setup(t)
	_, token := operatorToken(t)

	lastInbound := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Second)
	conv := testutil.CreateConversation(t, msgRepo, "+243810000030", messaging.ParticipantParent, &lastInbound)

	t.Run("detail", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/conversations/"+conv.ID, token)
		server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp ConversationResponse
		unmarchallObj(t, rec.Body.Bytes(), &resp)
		assert.Equal(t, conv.ID, resp.ID)
		assert.Equal(t, 1, resp.UnreadCount)
		assert.True(t, resp.Window.FreeformAllowed)
		assert.Equal(t, messaging.ReasonWithinWindow, resp.Window.Reason)
	})

	t.Run("window", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/conversations/"+conv.ID+"/window", token)
		server.ServeHTTP(rec, req)
		tt := httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, messaging.Evaluate(&lastInbound, time.Now().UTC()))}
		checkCodeAndData(t, tt, rec)
	})

	t.Run("messages", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/conversations/"+conv.ID+"/messages", token)
		server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var msgs []messaging.Message
		unmarchallObj(t, rec.Body.Bytes(), &msgs)
		require.Len(t, msgs, 1)
		assert.Equal(t, messaging.DirectionInbound, msgs[0].Direction)
	})

	t.Run("mark read", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/conversations/"+conv.ID+"/read", token)
		server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp ConversationResponse
		unmarchallObj(t, rec.Body.Bytes(), &resp)
		assert.Equal(t, 0, resp.UnreadCount)
	})

	for _, path := range []string{"", "/window", "/messages"} {
		t.Run("not found "+path, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/conversations/lol"+path, token)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}, rec)
		})
	}
}

func TestConversationAPI_sendText(t *testing.T) {
	server := setup(t)
	usr, token := operatorToken(t)

	now := time.Now().UTC()
	open := testutil.CreateConversation(t, msgRepo, "+243810000040", messaging.ParticipantParent, timePtr(now.Add(-23*time.Hour)))
	expired := testutil.CreateConversation(t, msgRepo, "+243810000041", messaging.ParticipantParent, timePtr(now.Add(-25*time.Hour)))
	fresh := testutil.CreateConversation(t, msgRepo, "+243810000042", messaging.ParticipantUnknown, nil)

	tests := []struct {
		name       string
		convID     string
		body       string
		wantCode   int
		wantReason messaging.WindowReason
	}{
		{name: "empty content", convID: open.ID, body: `{"content": "  "}`, wantCode: http.StatusBadRequest},
		{name: "unknown conversation", convID: "lol", body: `{"content": "hi"}`, wantCode: http.StatusNotFound},
		{name: "no inbound yet", convID: fresh.ID, body: `{"content": "hi"}`, wantCode: http.StatusConflict, wantReason: messaging.ReasonNoInboundYet},
		{name: "window expired", convID: expired.ID, body: `{"content": "hi"}`, wantCode: http.StatusConflict, wantReason: messaging.ReasonWindowExpired},
		{name: "within window", convID: open.ID, body: `{"content": " Hello! "}`, wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/conversations/"+tt.convID+"/messages", token, []byte(tt.body))
			server.ServeHTTP(rec, req)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			switch tt.wantCode {
			case http.StatusConflict:
				var resp struct {
					Error    string                   `json:"error"`
					Decision messaging.WindowDecision `json:"decision"`
				}
				unmarchallObj(t, rec.Body.Bytes(), &resp)
				assert.Equal(t, tt.wantReason, resp.Decision.Reason)
				assert.True(t, resp.Decision.TemplateRequired)
				assert.NotEmpty(t, resp.Error)
			case http.StatusCreated:
				var msg messaging.Message
				unmarchallObj(t, rec.Body.Bytes(), &msg)
				assert.Equal(t, messaging.StatusSent, msg.Status)
				assert.Equal(t, "Hello!", msg.Content)
				assert.Equal(t, usr.ID, msg.SentBy)
				assert.NotEmpty(t, msg.ProviderID)
			}
		})
	}

	// nothing was sent outside of the window
	sent := provider.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "whatsapp:+243810000040", sent[0].To)
}

func TestConversationAPI_sendTemplate(t *testing.T) {
	server := setup(t)
	_, token := operatorToken(t)

	conv := testutil.CreateConversation(t, msgRepo, "+243810000050", messaging.ParticipantParent, nil)
	testutil.CreateTemplate(t, msgRepo, "fees_reminder", "Dear {{1}}, fees of {{2}} are due.")
	testutil.CreateTemplate(t, msgRepo, "draft", "Draft {{1}}", messaging.TemplatePending)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantData []byte
	}{
		{
			name:     "unknown template",
			body:     `{"template": "lol"}`,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"template": messaging.ErrTemplateNotFound.Error()}),
		},
		{
			name:     "template not approved",
			body:     `{"template": "draft", "variables": ["x"]}`,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"template": messaging.ErrTemplateNotApproved.Error()}),
		},
		{
			name:     "empty variable",
			body:     `{"template": "fees_reminder", "variables": ["Mama Rose", " "]}`,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"variables": "variables must not be empty"}),
		},
		{name: "missing variables", body: `{"template": "fees_reminder", "variables": ["Mama Rose"]}`, wantCode: http.StatusBadRequest},
		{name: "outside of the window", body: `{"template": "Fees_Reminder", "variables": ["Mama Rose", "March"]}`, wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/conversations/"+conv.ID+"/templates", token, []byte(tt.body))
			server.ServeHTTP(rec, req)

			if tt.wantData != nil {
				checkCodeAndData(t, httpTest{wantCode: tt.wantCode, wantData: tt.wantData}, rec)
				return
			}
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusCreated {
				var msg messaging.Message
				unmarchallObj(t, rec.Body.Bytes(), &msg)
				assert.Equal(t, "fees_reminder", msg.TemplateName)
				assert.Equal(t, "Dear Mama Rose, fees of March are due.", msg.Content)
				assert.Equal(t, messaging.StatusSent, msg.Status)
			}
		})
	}
}

func TestConversationAPI_deliveryFailure(t *testing.T) {
	server := setup(t)
	_, token := operatorToken(t)

	conv := testutil.CreateConversation(t, msgRepo, "+243810000060", messaging.ParticipantParent, timePtr(time.Now().UTC().Add(-time.Hour)))

	provider.FailWith(&messaging.DispatchError{Err: errors.New("service unavailable"), Code: "503", Retryable: true})
	req, rec := newAuthRequest(http.MethodPost, "/v1/conversations/"+conv.ID+"/messages", token, []byte(`{"content": "hi"}`))
	server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadGateway, rec.Code, rec.Body.String())

	var resp struct {
		Code      string            `json:"code"`
		Retryable bool              `json:"retryable"`
		Message   messaging.Message `json:"message"`
	}
	unmarchallObj(t, rec.Body.Bytes(), &resp)
	assert.Equal(t, "503", resp.Code)
	assert.True(t, resp.Retryable)
	assert.Equal(t, messaging.StatusFailed, resp.Message.Status)
	require.NotEmpty(t, resp.Message.ID)

	retryPath := "/v1/messages/" + resp.Message.ID + "/retry"

	t.Run("retry", func(t *testing.T) {
		provider.FailWith(nil)
		req, rec := newAuthRequest(http.MethodPost, retryPath, token)
		server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var msg messaging.Message
		unmarchallObj(t, rec.Body.Bytes(), &msg)
		assert.Equal(t, messaging.StatusSent, msg.Status)
		assert.Empty(t, msg.ErrorCode)
	})

	t.Run("retry sent message", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, retryPath, token)
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: messaging.ErrNotRetryable.Error()}),
		}, rec)
	})

	t.Run("retrieve", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/messages/"+resp.Message.ID, token)
		server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("retry unknown message", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/messages/lol/retry", token)
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}, rec)
	})
}
