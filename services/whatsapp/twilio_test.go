package whatsappsvc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/trezcool/masomo-connect/core/messaging"
	testutil "github.com/trezcool/masomo-connect/tests"
)

type fakeCreator struct {
	params *openapi.CreateMessageParams
	err    error
}

func (f *fakeCreator) CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	sid, status := "SM123", "queued"
	return &openapi.ApiV2010Message{Sid: &sid, Status: &status}, nil
}

func newTestProvider(api messageCreator) *twilioProvider {
	conf := testutil.NewConfig()
	conf.Twilio.From = "+14155238886"
	conf.Twilio.StatusCallbackURL = "https://example.com/webhooks/twilio/status"
	return newTwilioProvider(api, conf, testutil.NewLogger())
}

func TestTwilioProvider_SendText(t *testing.T) {
	api := &fakeCreator{}
	p := newTestProvider(api)

	receipt, err := p.SendText(context.Background(), "+243810000001", "Bonjour")
	require.NoError(t, err)
	assert.Equal(t, messaging.Receipt{ID: "SM123", Status: "queued"}, receipt)

	require.NotNil(t, api.params)
	assert.Equal(t, "whatsapp:+243810000001", *api.params.To)
	assert.Equal(t, "whatsapp:+14155238886", *api.params.From)
	assert.Equal(t, "Bonjour", *api.params.Body)
	assert.Equal(t, "https://example.com/webhooks/twilio/status", *api.params.StatusCallback)
}

func TestTwilioProvider_SendTemplate(t *testing.T) {
	api := &fakeCreator{}
	p := newTestProvider(api)
	tmpl := messaging.Template{Name: "fees_reminder", ContentSID: "HX123", Body: "Dear {{1}}, {{2}} is due"}

	_, err := p.SendTemplate(context.Background(), "+243810000001", tmpl, []string{"John", "$100"})
	require.NoError(t, err)
	assert.Equal(t, "HX123", *api.params.ContentSid)
	assert.Nil(t, api.params.Body)

	var vars map[string]string
	require.NoError(t, json.Unmarshal([]byte(*api.params.ContentVariables), &vars))
	assert.Equal(t, map[string]string{"1": "John", "2": "$100"}, vars)

	// no content sid: sent as rendered text
	tmpl.ContentSID = ""
	_, err = p.SendTemplate(context.Background(), "+243810000001", tmpl, []string{"John", "$100"})
	require.NoError(t, err)
	assert.Equal(t, "Dear John, $100 is due", *api.params.Body)
}

func TestTwilioProvider_errors(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantCode      string
		wantRetryable bool
	}{
		{name: "transport", err: errors.New("connection reset"), wantRetryable: true},
		{name: "server error", err: &client.TwilioRestError{Status: 503, Code: 20500}, wantCode: "20500", wantRetryable: true},
		{name: "rate limited", err: &client.TwilioRestError{Status: 429, Code: 20429}, wantCode: "20429", wantRetryable: true},
		{name: "invalid number", err: &client.TwilioRestError{Status: 400, Code: 21211}, wantCode: "21211"},
		{name: "outside window", err: &client.TwilioRestError{Status: 400, Code: 63016}, wantCode: "63016"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(&fakeCreator{err: tt.err})
			_, err := p.SendText(context.Background(), "+243810000001", "hi")

			var de *messaging.DispatchError
			if !errors.As(err, &de) {
				t.Fatalf("failed! err = %v; want a *DispatchError", err)
			}
			if de.Code != tt.wantCode {
				t.Errorf("failed! Code = %q; want %q", de.Code, tt.wantCode)
			}
			if de.Retryable != tt.wantRetryable {
				t.Errorf("failed! Retryable = %v; want %v", de.Retryable, tt.wantRetryable)
			}
		})
	}
}

func TestConsoleProvider(t *testing.T) {
	p := NewConsoleProvider(testutil.NewLogger())
	tmpl := messaging.Template{Name: "welcome", Body: "Hi {{1}}"}

	r1, err := p.SendText(context.Background(), "+243810000001", "hello")
	require.NoError(t, err)
	r2, err := p.SendTemplate(context.Background(), "+243810000001", tmpl, []string{"John"})
	require.NoError(t, err)
	assert.NotEqual(t, r1.ID, r2.ID)

	sent := p.SentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, "Hi John", sent[1].Body)
	assert.Equal(t, "welcome", sent[1].Template)

	_, err = p.SendTemplate(context.Background(), "+243810000001", tmpl, nil)
	assert.ErrorIs(t, err, messaging.ErrTemplateVariables)

	p.FailWith(&messaging.DispatchError{Err: errors.New("down"), Retryable: true})
	_, err = p.SendText(context.Background(), "+243810000001", "hello")
	assert.True(t, messaging.IsRetryable(err))
}
