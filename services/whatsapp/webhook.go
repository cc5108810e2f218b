package whatsappsvc

import (
	"github.com/twilio/twilio-go/client"

	"github.com/trezcool/masomo-connect/core"
)

// SignatureHeader carries the request signature of twilio webhooks.
const SignatureHeader = "X-Twilio-Signature"

// WebhookValidator checks that webhook requests were signed by twilio.
type WebhookValidator struct {
	validator *client.RequestValidator
	enabled   bool
}

func NewWebhookValidator(conf *core.Config) *WebhookValidator {
	rv := client.NewRequestValidator(conf.Twilio.AuthToken)
	return &WebhookValidator{validator: &rv, enabled: conf.Twilio.ValidateWebhooks}
}

func (v *WebhookValidator) Enabled() bool { return v != nil && v.enabled }

// Validate checks the signature of a request made to `url` with the form `params`.
// Always true when validation is disabled.
func (v *WebhookValidator) Validate(url string, params map[string]string, signature string) bool {
	if !v.Enabled() {
		return true
	}
	return signature != "" && v.validator.Validate(url, params, signature)
}
