package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-connect/core"
	"github.com/trezcool/masomo-connect/core/messaging"
	whatsappsvc "github.com/trezcool/masomo-connect/services/whatsapp"
)

const emptyTwiML = "<?xml version=\"1.0\" encoding=\"UTF-8\"?><Response></Response>"

type webhookApi struct {
	conf      *core.Config
	svc       messaging.ServiceInterface
	validator *whatsappsvc.WebhookValidator
	logger    core.Logger
}

func registerWebhooks(
	g *echo.Group,
	conf *core.Config,
	svc messaging.ServiceInterface,
	validator *whatsappsvc.WebhookValidator,
	logger core.Logger,
) {
	api := webhookApi{
		conf:      conf,
		svc:       svc,
		validator: validator,
		logger:    logger,
	}

	tg := g.Group("/twilio", api.signatureMiddleware)
	tg.POST("/inbound", api.inbound)
	tg.POST("/status", api.status)
}

// signatureMiddleware rejects requests that were not signed by the provider.
func (api *webhookApi) signatureMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if !api.validator.Enabled() {
			return next(ctx)
		}
		form, err := ctx.FormParams()
		if err != nil {
			return errors.Wrap(err, "parsing webhook form")
		}
		params := make(map[string]string, len(form))
		for k := range form {
			params[k] = form.Get(k)
		}
		if !api.validator.Validate(api.requestURL(ctx), params, ctx.Request().Header.Get(whatsappsvc.SignatureHeader)) {
			return errInvalidSignature
		}
		return next(ctx)
	}
}

// requestURL is the public URL the provider called.
func (api *webhookApi) requestURL(ctx echo.Context) string {
	req := ctx.Request()
	if base := strings.TrimSuffix(api.conf.Twilio.WebhookBaseURL, "/"); base != "" {
		return base + req.URL.RequestURI()
	}
	return ctx.Scheme() + "://" + req.Host + req.URL.RequestURI()
}

func (api *webhookApi) inbound(ctx echo.Context) error {
	in := messaging.InboundMessage{
		ProviderID:  ctx.FormValue("MessageSid"),
		From:        strings.TrimPrefix(ctx.FormValue("From"), "whatsapp:"),
		ProfileName: ctx.FormValue("ProfileName"),
		Kind:        messaging.KindText,
		Content:     ctx.FormValue("Body"),
	}
	if lat, long := ctx.FormValue("Latitude"), ctx.FormValue("Longitude"); lat != "" && long != "" {
		in.Kind = messaging.KindLocation
		in.Content = lat + "," + long
	} else if media := ctx.FormValue("MediaUrl0"); media != "" {
		in.Kind = mediaKind(ctx.FormValue("MediaContentType0"))
		in.MediaURL = media
	}

	if _, _, err := api.svc.ReceiveInbound(ctx.Request().Context(), in); err != nil {
		return errors.Wrap(err, "receiving inbound message")
	}
	return ctx.Blob(http.StatusOK, echo.MIMETextXMLCharsetUTF8, []byte(emptyTwiML))
}

func (api *webhookApi) status(ctx echo.Context) error {
	upd := messaging.StatusUpdate{
		ProviderID:   ctx.FormValue("MessageSid"),
		Status:       ctx.FormValue("MessageStatus"),
		ErrorCode:    ctx.FormValue("ErrorCode"),
		ErrorMessage: ctx.FormValue("ErrorMessage"),
	}

	if _, err := api.svc.ApplyStatus(ctx.Request().Context(), upd); err != nil {
		// callbacks for messages sent from elsewhere
		if errors.Cause(err) != messaging.ErrNotFound {
			return errors.Wrap(err, "applying status")
		}
		api.logger.Warn("status callback for unknown message " + upd.ProviderID)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func mediaKind(contentType string) messaging.Kind {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return messaging.KindImage
	case strings.HasPrefix(contentType, "audio/"):
		return messaging.KindAudio
	case strings.HasPrefix(contentType, "video/"):
		return messaging.KindVideo
	default:
		return messaging.KindDocument
	}
}
