package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-connect/core"
	"github.com/trezcool/masomo-connect/core/messaging"
)

type templateApi struct {
	svc      messaging.ServiceInterface
	validate *validator.Validate
}

func registerTemplateAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc messaging.ServiceInterface,
	validate *validator.Validate,
) {
	api := templateApi{
		svc:      svc,
		validate: validate,
	}

	tg := g.Group("/templates", jwt)
	tg.GET("", api.query)
	tg.POST("", api.create, adminMiddleware())
}

func (api *templateApi) query(ctx echo.Context) error {
	filter := &messaging.TemplateQueryFilter{
		Status: messaging.TemplateStatus(core.CleanString(ctx.QueryParam("status"), true /* lower */)),
	}
	tmpls, err := api.svc.QueryTemplates(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying templates")
	}
	if tmpls == nil {
		tmpls = []messaging.Template{}
	}
	return ctx.JSON(http.StatusOK, tmpls)
}

func (api *templateApi) create(ctx echo.Context) error {
	var data messaging.NewTemplate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTemplate")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	tmpl, err := api.svc.CreateTemplate(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating template")
	}
	return ctx.JSON(http.StatusCreated, tmpl)
}
