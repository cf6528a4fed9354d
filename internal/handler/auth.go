package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/apperror"
	"github.com/iliyamo/auth-service/internal/middleware"
	"github.com/iliyamo/auth-service/internal/service"
)

// AuthHandler serves the /auth endpoints on top of the auth core.
type AuthHandler struct {
	auth             service.Auth
	timeout          time.Duration
	exposeResetToken bool
}

// AuthOptions tunes AuthHandler. ExposeResetToken must stay off in production.
type AuthOptions struct {
	Timeout          time.Duration
	ExposeResetToken bool
}

func NewAuthHandler(auth service.Auth, opts AuthOptions) *AuthHandler {
	return &AuthHandler{auth: auth, timeout: opts.Timeout, exposeResetToken: opts.ExposeResetToken}
}

// ----- DTOs -----

type registerReq struct {
	Email     string  `json:"email" validate:"required,email,max=255"`
	Password  string  `json:"password" validate:"required"`
	FirstName *string `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
}

type loginReq struct {
	Email    string `json:"email" form:"email" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type changePasswordReq struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type forgotPasswordReq struct {
	Email string `json:"email" validate:"required"`
}

type resetPasswordReq struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

type messageResp struct {
	Message    string `json:"message"`
	ResetToken string `json:"reset_token,omitempty"`
}

const forgotPasswordMessage = "if the email is registered, a reset link has been sent"

// Register creates an account and returns its public view.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("invalid request body").WithCause(err)
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	u, err := h.auth.Register(ctx, service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u.View())
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	u, err := h.auth.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	pair, err := h.auth.CreateTokens(ctx, u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

// Refresh rotates a refresh token into a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	pair, err := h.auth.Refresh(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

// Logout blacklists the bearer access token. It always answers 200.
func (h *AuthHandler) Logout(c echo.Context) error {
	if raw, ok := middleware.BearerToken(c); ok {
		ctx, cancel := withTimeout(c, h.timeout)
		defer cancel()
		h.auth.Logout(ctx, raw)
	}
	return c.JSON(http.StatusOK, messageResp{Message: "successfully logged out"})
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return apperror.Unauthorized(apperror.ReasonInvalidToken, "not authenticated")
	}
	return c.JSON(http.StatusOK, p.User.View())
}

func (h *AuthHandler) ChangePassword(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return apperror.Unauthorized(apperror.ReasonInvalidToken, "not authenticated")
	}
	var req changePasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	if err := h.auth.ChangePassword(ctx, p.User.ID, req.OldPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResp{Message: "password updated"})
}

// ForgotPassword answers the same way whether or not the email is known.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	resp := messageResp{Message: forgotPasswordMessage}
	if raw := h.auth.ForgotPassword(ctx, req.Email); raw != "" && h.exposeResetToken {
		resp.ResetToken = raw
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := withTimeout(c, h.timeout)
	defer cancel()

	if err := h.auth.ResetPassword(ctx, strings.TrimSpace(req.Token), req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResp{Message: "password has been reset"})
}
