package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-connect/core/messaging"
	"github.com/trezcool/masomo-connect/core/user"
)

type conversationApi struct {
	svc      messaging.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerConversationAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc messaging.ServiceInterface,
	usrSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := conversationApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	operator := operatorMiddleware(usrSvc)

	cg := g.Group("/conversations", jwt, operator)
	cg.GET("", api.query)
	cg.POST("", api.create)

	// detail endpoints
	dg := cg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.GET("/window", api.window)
	dg.GET("/messages", api.queryMessages)
	dg.POST("/messages", api.sendText)
	dg.POST("/templates", api.sendTemplate)
	dg.POST("/read", api.markRead)

	mg := g.Group("/messages", jwt, operator)
	mg.GET("/:id", api.retrieveMessage)
	mg.POST("/:id/retry", api.retry)
}

// ConversationResponse is a conversation along with its current messaging window.
type ConversationResponse struct {
	messaging.Conversation
	Window messaging.WindowDecision `json:"window"`
}

// Handlers

func (api *conversationApi) query(ctx echo.Context) error {
	filter := bindQueryFilter(ctx)
	ordering := new(Ordering)
	ordering.Bind(ctx)

	convs, err := api.svc.QueryConversations(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying conversations")
	}
	if convs == nil {
		convs = []messaging.Conversation{}
	}
	return ctx.JSON(http.StatusOK, convs)
}

func (api *conversationApi) create(ctx echo.Context) error {
	var data messaging.NewConversation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewConversation")
	}
	if err := data.Validate(api.validate, api.svc.DefaultCountryCode()); err != nil {
		return err
	}

	conv, err := api.svc.StartConversation(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "starting conversation")
	}
	return api.respondConversation(ctx, http.StatusCreated, conv)
}

func (api *conversationApi) retrieve(ctx echo.Context) error {
	conv, err := api.svc.GetConversation(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting conversation")
	}
	return api.respondConversation(ctx, http.StatusOK, conv)
}

func (api *conversationApi) window(ctx echo.Context) error {
	decision, err := api.svc.Window(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "evaluating window")
	}
	return ctx.JSON(http.StatusOK, decision)
}

func (api *conversationApi) queryMessages(ctx echo.Context) error {
	msgs, err := api.svc.QueryMessages(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying messages")
	}
	if msgs == nil {
		msgs = []messaging.Message{}
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *conversationApi) sendText(ctx echo.Context) error {
	var data messaging.NewTextMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTextMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	msg, err := api.svc.SendText(ctx.Request().Context(), ctx.Param("id"), data, claims.Subject)
	return respondSent(ctx, msg, err)
}

func (api *conversationApi) sendTemplate(ctx echo.Context) error {
	var data messaging.NewTemplateMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTemplateMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	msg, err := api.svc.SendTemplate(ctx.Request().Context(), ctx.Param("id"), data, claims.Subject)
	return respondSent(ctx, msg, err)
}

func (api *conversationApi) markRead(ctx echo.Context) error {
	conv, err := api.svc.MarkRead(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking conversation read")
	}
	return api.respondConversation(ctx, http.StatusOK, conv)
}

func (api *conversationApi) retrieveMessage(ctx echo.Context) error {
	msg, err := api.svc.GetMessage(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting message")
	}
	return ctx.JSON(http.StatusOK, msg)
}

func (api *conversationApi) retry(ctx echo.Context) error {
	msg, err := api.svc.Retry(ctx.Request().Context(), ctx.Param("id"))
	return respondSent(ctx, msg, err)
}

func (api *conversationApi) respondConversation(ctx echo.Context, code int, conv messaging.Conversation) error {
	return ctx.JSON(code, ConversationResponse{
		Conversation: conv,
		Window:       conv.Window(messaging.NowFunc()),
	})
}

// respondSent answers a send/retry: a message stored but not handed over to the provider is still returned.
func respondSent(ctx echo.Context, msg messaging.Message, err error) error {
	if err != nil {
		if de, ok := errors.Cause(err).(*messaging.DispatchError); ok && msg.ID != "" {
			return ctx.JSON(http.StatusBadGateway, dispatchFailed(de, msg))
		}
		return err
	}
	return ctx.JSON(http.StatusCreated, msg)
}
