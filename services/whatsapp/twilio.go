package whatsappsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/trezcool/masomo-connect/core"
	"github.com/trezcool/masomo-connect/core/messaging"
)

const addressPrefix = "whatsapp:"

// twilio error codes that must not be retried, whatever the http status
var permanentErrorCodes = map[int]bool{
	21211: true, // invalid 'To' phone number
	21408: true, // region not enabled
	21610: true, // recipient unsubscribed
	63016: true, // outside the allowed window
	63024: true, // invalid message recipient
}

// messageCreator is the part of the twilio REST client used by the provider.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

type twilioProvider struct {
	api            messageCreator
	from           string
	statusCallback string
	logger         core.Logger
}

var _ messaging.Provider = (*twilioProvider)(nil) // interface compliance check

func NewTwilioProvider(conf *core.Config, logger core.Logger) *twilioProvider {
	c := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: conf.Twilio.AccountSID,
		Password: conf.Twilio.AuthToken,
	})
	return newTwilioProvider(c.Api, conf, logger)
}

func newTwilioProvider(api messageCreator, conf *core.Config, logger core.Logger) *twilioProvider {
	return &twilioProvider{
		api:            api,
		from:           address(conf.Twilio.From),
		statusCallback: conf.Twilio.StatusCallbackURL,
		logger:         logger,
	}
}

// address returns the whatsapp address of an E.164 phone number.
func address(phone string) string {
	if phone == "" || strings.HasPrefix(phone, addressPrefix) {
		return phone
	}
	return addressPrefix + phone
}

func (p twilioProvider) newParams(to string) *openapi.CreateMessageParams {
	params := &openapi.CreateMessageParams{}
	params.SetFrom(p.from)
	params.SetTo(address(to))
	if p.statusCallback != "" {
		params.SetStatusCallback(p.statusCallback)
	}
	return params
}

func (p twilioProvider) SendText(ctx context.Context, to, body string) (messaging.Receipt, error) {
	params := p.newParams(to)
	params.SetBody(body)
	return p.send(ctx, params)
}

// SendTemplate sends the template through its content SID; templates without one are sent as rendered text.
func (p twilioProvider) SendTemplate(ctx context.Context, to string, tmpl messaging.Template, vars []string) (messaging.Receipt, error) {
	params := p.newParams(to)
	if tmpl.ContentSID == "" {
		body, err := tmpl.Render(vars)
		if err != nil {
			return messaging.Receipt{}, &messaging.DispatchError{Err: err, Code: "template-variables"}
		}
		params.SetBody(body)
		return p.send(ctx, params)
	}

	params.SetContentSid(tmpl.ContentSID)
	if len(vars) > 0 {
		b, err := json.Marshal(tmpl.Variables(vars))
		if err != nil {
			return messaging.Receipt{}, &messaging.DispatchError{Err: errors.Wrap(err, "encoding content variables")}
		}
		params.SetContentVariables(string(b))
	}
	return p.send(ctx, params)
}

func (p twilioProvider) send(ctx context.Context, params *openapi.CreateMessageParams) (messaging.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return messaging.Receipt{}, &messaging.DispatchError{Err: err, Retryable: true}
	}
	res, err := p.api.CreateMessage(params)
	if err != nil {
		return messaging.Receipt{}, classify(err)
	}

	var receipt messaging.Receipt
	if res.Sid != nil {
		receipt.ID = *res.Sid
	}
	if res.Status != nil {
		receipt.Status = *res.Status
	}
	return receipt, nil
}

// classify turns twilio errors into dispatch errors: server errors, rate limiting & transport errors are retryable.
func classify(err error) *messaging.DispatchError {
	var restErr *client.TwilioRestError
	if !errors.As(err, &restErr) {
		return &messaging.DispatchError{Err: errors.Wrap(err, "calling twilio"), Retryable: true}
	}

	retryable := restErr.Status >= http.StatusInternalServerError || restErr.Status == http.StatusTooManyRequests
	if permanentErrorCodes[restErr.Code] {
		retryable = false
	}
	var code string
	if restErr.Code != 0 {
		code = strconv.Itoa(restErr.Code)
	}
	return &messaging.DispatchError{Err: restErr, Code: code, Retryable: retryable}
}
