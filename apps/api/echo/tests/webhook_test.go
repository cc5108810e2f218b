package tests

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-connect/core/messaging"
	"github.com/trezcool/masomo-connect/tests"
)

const twilioAuthToken = "twilio-auth-token"

func sign(rawURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	data := rawURL
	for _, k := range keys {
		data += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(twilioAuthToken))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestWebhooks_inbound(t *testing.T) {
	server := setup(t)

	tests := []struct {
		name     string
		form     url.Values
		wantCode int
		wantKind messaging.Kind
		wantMsgs int
	}{
		{name: "invalid phone", form: url.Values{"MessageSid": {"SM0"}, "From": {"whatsapp:"}, "Body": {"hi"}}, wantCode: http.StatusBadRequest},
		{
			name:     "text",
			form:     url.Values{"MessageSid": {"SM1"}, "From": {"whatsapp:+243810000070"}, "ProfileName": {"Mama Rose"}, "Body": {"Bonjour"}},
			wantCode: http.StatusOK,
			wantKind: messaging.KindText,
			wantMsgs: 1,
		},
		{
			name:     "provider retry",
			form:     url.Values{"MessageSid": {"SM1"}, "From": {"whatsapp:+243810000070"}, "ProfileName": {"Mama Rose"}, "Body": {"Bonjour"}},
			wantCode: http.StatusOK,
			wantKind: messaging.KindText,
			wantMsgs: 1,
		},
		{
			name:     "image",
			form:     url.Values{"MessageSid": {"SM2"}, "From": {"whatsapp:+243810000070"}, "NumMedia": {"1"}, "MediaUrl0": {"https://api.twilio.com/media/1"}, "MediaContentType0": {"image/jpeg"}},
			wantCode: http.StatusOK,
			wantKind: messaging.KindImage,
			wantMsgs: 2,
		},
		{
			name:     "location",
			form:     url.Values{"MessageSid": {"SM3"}, "From": {"whatsapp:+243810000070"}, "Latitude": {"-4.3217"}, "Longitude": {"15.3125"}},
			wantCode: http.StatusOK,
			wantKind: messaging.KindLocation,
			wantMsgs: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newFormRequest("/webhooks/twilio/inbound", tt.form)
			server.ServeHTTP(rec, req)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode != http.StatusOK {
				return
			}
			assert.Contains(t, rec.Body.String(), "<Response></Response>")

			ctx := context.Background()
			conv, err := msgRepo.GetConversation(ctx, messaging.GetFilter{Phone: "+243810000070"})
			require.NoError(t, err)
			assert.Equal(t, "Mama Rose", conv.ParticipantName)
			assert.Equal(t, tt.wantMsgs, conv.UnreadCount)
			assert.True(t, conv.Window(time.Now().UTC()).FreeformAllowed)

			msgs, err := msgRepo.QueryMessages(ctx, conv.ID)
			require.NoError(t, err)
			require.Len(t, msgs, tt.wantMsgs)
			if last := msgs[len(msgs)-1]; last.Kind != tt.wantKind {
				t.Errorf("failed! kind = %v; want %v", last.Kind, tt.wantKind)
			}
		})
	}
}

func TestWebhooks_status(t *testing.T) {
	server := setup(t)
	ctx := context.Background()

	conv := testutil.CreateConversation(t, msgRepo, "+243810000080", messaging.ParticipantParent, nil)
	msg, err := msgRepo.CreateMessage(ctx, messaging.Message{
		ConversationID: conv.ID,
		ProviderID:     "SM10",
		Direction:      messaging.DirectionOutbound,
		Kind:           messaging.KindText,
		Content:        "hi",
		Status:         messaging.StatusSent,
	})
	require.NoError(t, err)

	tests := []struct {
		name       string
		form       url.Values
		wantCode   int
		wantStatus messaging.Status
	}{
		{name: "unknown status", form: url.Values{"MessageSid": {"SM10"}, "MessageStatus": {"lol"}}, wantCode: http.StatusBadRequest, wantStatus: messaging.StatusSent},
		{name: "unknown message", form: url.Values{"MessageSid": {"SM404"}, "MessageStatus": {"delivered"}}, wantCode: http.StatusNoContent, wantStatus: messaging.StatusSent},
		{name: "sending is not recorded", form: url.Values{"MessageSid": {"SM10"}, "MessageStatus": {"sending"}}, wantCode: http.StatusNoContent, wantStatus: messaging.StatusSent},
		{name: "read", form: url.Values{"MessageSid": {"SM10"}, "MessageStatus": {"read"}}, wantCode: http.StatusNoContent, wantStatus: messaging.StatusRead},
		{name: "late delivered is ignored", form: url.Values{"MessageSid": {"SM10"}, "MessageStatus": {"delivered"}}, wantCode: http.StatusNoContent, wantStatus: messaging.StatusRead},
		{
			name:       "late failure is ignored",
			form:       url.Values{"MessageSid": {"SM10"}, "MessageStatus": {"undelivered"}, "ErrorCode": {"63016"}},
			wantCode:   http.StatusNoContent,
			wantStatus: messaging.StatusRead,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newFormRequest("/webhooks/twilio/status", tt.form)
			server.ServeHTTP(rec, req)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			got, err := msgRepo.GetMessage(ctx, messaging.MessageGetFilter{ID: msg.ID})
			require.NoError(t, err)
			if got.Status != tt.wantStatus {
				t.Errorf("failed! status = %v; want %v", got.Status, tt.wantStatus)
			}
		})
	}
}

func TestWebhooks_signature(t *testing.T) {
	server := setup(t, withWebhookValidation(twilioAuthToken))

	form := url.Values{"MessageSid": {"SM1"}, "From": {"whatsapp:+243810000090"}, "Body": {"Bonjour"}}
	good := sign("https://connect.masomo.cd/webhooks/twilio/inbound", form)
	wrongURL := sign("https://evil.example.com/webhooks/twilio/inbound", form)

	tests := []struct {
		name      string
		signature string
		wantCode  int
	}{
		{name: "no signature", wantCode: http.StatusForbidden},
		{name: "wrong url", signature: wrongURL, wantCode: http.StatusForbidden},
		{name: "tampered", signature: good[1:] + "A", wantCode: http.StatusForbidden},
		{name: "signed", signature: good, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newFormRequest("/webhooks/twilio/inbound", form, map[string]string{"X-Twilio-Signature": tt.signature})
			server.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Errorf("failed! code = %v; want %v; body = %s", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}
}
