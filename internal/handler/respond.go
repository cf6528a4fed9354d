package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/auth-service/internal/apperror"
	"github.com/iliyamo/auth-service/internal/logger"
)

// HTTPErrorHandler is the single place where errors become responses.
// apperror kinds keep their message; anything else is logged and answered
// with a generic 500.
func HTTPErrorHandler(log *logger.Logger) echo.HTTPErrorHandler {
	log = log.Named("http")
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			status int
			msg    string
			he     *echo.HTTPError
		)
		switch {
		case errors.As(err, &he):
			status = he.Code
			msg = http.StatusText(he.Code)
			if s, ok := he.Message.(string); ok {
				msg = s
			}
		case apperror.KindOf(err) != apperror.KindInternal:
			status = apperror.HTTPStatus(apperror.KindOf(err))
			var ae *apperror.Error
			errors.As(err, &ae)
			msg = ae.Message
		default:
			status = http.StatusInternalServerError
			msg = "internal server error"
			log.WithContext(c.Request().Context()).Error("unhandled error",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}

		if status == http.StatusUnauthorized {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, echo.Map{"error": msg})
		}
		if err != nil {
			log.Warn("write error response", zap.Error(err))
		}
	}
}

// RequestValidator plugs validator/v10 into echo's c.Validate.
type RequestValidator struct {
	v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{v: v}
}

// Validate reports the first failing field as a BadRequest.
func (rv *RequestValidator) Validate(i any) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperror.BadRequest(fmt.Sprintf("%s: failed %q validation", fe.Field(), fe.Tag()))
	}
	return apperror.BadRequest("invalid request body").WithCause(err)
}

// bind decodes the body into req and validates it.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return apperror.BadRequest("invalid request body").WithCause(err)
	}
	return c.Validate(req)
}

func withTimeout(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(c.Request().Context())
	}
	return context.WithTimeout(c.Request().Context(), d)
}

func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperror.BadRequest("invalid " + name)
	}
	return id, nil
}
