package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iliyamo/auth-service/internal/apperror"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/service"
	"github.com/iliyamo/auth-service/internal/token"
)

var tracer = otel.Tracer("auth-service/service")

// instrumentedAuth wraps a service.Auth with metrics and spans.
type instrumentedAuth struct {
	next service.Auth
	m    *Collectors
}

// InstrumentAuth returns next decorated with c.
func InstrumentAuth(next service.Auth, c *Collectors) service.Auth {
	return &instrumentedAuth{next: next, m: c}
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return apperror.KindOf(err).String()
}

// begin opens a span for op and returns the closer that records latency,
// failure reason and span status.
func (a *instrumentedAuth) begin(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, "auth."+op, trace.WithAttributes(attribute.String("auth.op", op)))
	start := time.Now()
	return ctx, func(err error) {
		a.m.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err != nil {
			reason := apperror.ReasonOf(err)
			if reason == "" {
				reason = apperror.KindOf(err).String()
			}
			a.m.Failures.WithLabelValues(op, reason).Inc()
			span.SetAttributes(attribute.String("auth.reason", reason))
			span.SetStatus(codes.Error, apperror.KindOf(err).String())
		}
		span.End()
	}
}

func (a *instrumentedAuth) Register(ctx context.Context, in service.RegisterInput) (model.User, error) {
	ctx, done := a.begin(ctx, "register")
	u, err := a.next.Register(ctx, in)
	done(err)
	a.m.Registrations.WithLabelValues(outcome(err)).Inc()
	return u, err
}

func (a *instrumentedAuth) Authenticate(ctx context.Context, email, plain string) (model.User, error) {
	ctx, done := a.begin(ctx, "authenticate")
	u, err := a.next.Authenticate(ctx, email, plain)
	done(err)
	a.m.LoginAttempts.WithLabelValues(outcome(err)).Inc()
	return u, err
}

func (a *instrumentedAuth) CreateTokens(ctx context.Context, u model.User) (service.TokenPair, error) {
	ctx, done := a.begin(ctx, "create_tokens")
	pair, err := a.next.CreateTokens(ctx, u)
	done(err)
	if err == nil {
		a.m.TokensIssued.WithLabelValues(string(token.KindAccess)).Inc()
		a.m.TokensIssued.WithLabelValues(string(token.KindRefresh)).Inc()
	}
	return pair, err
}

func (a *instrumentedAuth) Refresh(ctx context.Context, raw string) (service.TokenPair, error) {
	ctx, done := a.begin(ctx, "refresh")
	pair, err := a.next.Refresh(ctx, raw)
	done(err)
	a.m.Refreshes.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		a.m.TokensIssued.WithLabelValues(string(token.KindAccess)).Inc()
		a.m.TokensIssued.WithLabelValues(string(token.KindRefresh)).Inc()
	}
	return pair, err
}

func (a *instrumentedAuth) Logout(ctx context.Context, raw string) {
	ctx, done := a.begin(ctx, "logout")
	a.next.Logout(ctx, raw)
	done(nil)
}

func (a *instrumentedAuth) ValidateAccess(ctx context.Context, raw string) (service.Principal, error) {
	ctx, done := a.begin(ctx, "validate")
	p, err := a.next.ValidateAccess(ctx, raw)
	done(err)
	a.m.Validations.WithLabelValues(outcome(err)).Inc()
	return p, err
}

func (a *instrumentedAuth) ChangePassword(ctx context.Context, userID uint64, oldPlain, newPlain string) error {
	ctx, done := a.begin(ctx, "change_password")
	err := a.next.ChangePassword(ctx, userID, oldPlain, newPlain)
	done(err)
	return err
}

func (a *instrumentedAuth) ForgotPassword(ctx context.Context, email string) string {
	ctx, done := a.begin(ctx, "forgot_password")
	raw := a.next.ForgotPassword(ctx, email)
	done(nil)
	if raw != "" {
		a.m.TokensIssued.WithLabelValues(string(token.KindReset)).Inc()
	}
	return raw
}

func (a *instrumentedAuth) ResetPassword(ctx context.Context, raw, newPlain string) error {
	ctx, done := a.begin(ctx, "reset_password")
	err := a.next.ResetPassword(ctx, raw, newPlain)
	done(err)
	return err
}
