package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-connect/core/user"
)

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// operatorMiddleware only lets active admins, staff & teachers in.
func operatorMiddleware(svc user.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if !claims.IsOperator {
				return errHttpForbidden
			}
			usr, err := getContextUser(ctx, svc, claims)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if (usr.IsActive != nil && !*usr.IsActive) || !usr.IsOperator() {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
