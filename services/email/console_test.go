package emailsvc

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-connect/core"
	testutil "github.com/trezcool/masomo-connect/tests"
)

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	ResetSentMessages()
	conf := testutil.NewConfig()
	conf.FrontendBaseURL = "https://app.example.com"
	logger := testutil.NewLogger()
	core.ParseEmailTemplates(conf, logger)
	svc := NewConsoleServiceMock(conf, logger)

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Ops", Address: "ops@example.com"}},
			Subject:      "New WhatsApp conversation",
			TemplateName: "new_conversation",
			TemplateData: struct {
				ConversationID string
				Phone          string
				ProfileName    string
				Content        string
			}{ConversationID: "c1", Phone: "+243810000001", ProfileName: "John", Content: "Bonjour"},
		},
		&core.EmailMessage{Subject: "no recipients", BodyStr: "ignored"},
	)

	require.Len(t, SentMessages, 1)
	msg := SentMessages[0]
	assert.Contains(t, msg.TextContent, "+243810000001")
	assert.Contains(t, msg.HTMLContent, "Bonjour")
	if !strings.Contains(msg.TextContent, "https://app.example.com") {
		t.Errorf("failed! TextContent = %q; want the frontend url", msg.TextContent)
	}
}
