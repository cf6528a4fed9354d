package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/auth-service/internal/apperror"
	"github.com/iliyamo/auth-service/internal/logger"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/password"
	"github.com/iliyamo/auth-service/internal/queue"
	"github.com/iliyamo/auth-service/internal/repository"
	"github.com/iliyamo/auth-service/internal/token"
)

// Default role names resolved at registration.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// TokenTypeBearer is the token_type reported to clients.
const TokenTypeBearer = "bearer"

// Auth is the authentication core. The HTTP layer and the metrics decorator
// both program against this interface.
type Auth interface {
	Register(ctx context.Context, in RegisterInput) (model.User, error)
	Authenticate(ctx context.Context, email, plain string) (model.User, error)
	CreateTokens(ctx context.Context, u model.User) (TokenPair, error)
	Refresh(ctx context.Context, raw string) (TokenPair, error)
	Logout(ctx context.Context, raw string)
	ValidateAccess(ctx context.Context, raw string) (Principal, error)
	ChangePassword(ctx context.Context, userID uint64, oldPlain, newPlain string) error
	ForgotPassword(ctx context.Context, email string) string
	ResetPassword(ctx context.Context, raw, newPlain string) error
}

// RegisterInput is a registration request. IsSuperuser is only ever set by
// internal callers such as the authctl CLI.
type RegisterInput struct {
	Email       string
	Password    string
	FirstName   *string
	LastName    *string
	IsSuperuser bool
}

// TokenPair is the result of a login or refresh.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

// AuthConfig carries the token lifetimes and password rules.
type AuthConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration
	Policy     password.Policy
}

// AuthDeps are the collaborators of AuthService.
type AuthDeps struct {
	Users     UserStore
	Roles     RoleReader
	Ledger    Ledger
	Blacklist Blacklist
	Resets    ResetTickets
	Events    EventPublisher
	Hasher    *password.Hasher
	Codec     *token.Codec
}

// AuthService implements Auth.
type AuthService struct {
	deps AuthDeps
	cfg  AuthConfig
	log  *logger.Logger

	dummyOnce sync.Once
	dummyHash string
}

var _ Auth = (*AuthService)(nil)

func NewAuthService(deps AuthDeps, cfg AuthConfig, log *logger.Logger) *AuthService {
	if deps.Events == nil {
		deps.Events = NopPublisher{}
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &AuthService{deps: deps, cfg: cfg, log: log.Named("auth")}
}

func (s *AuthService) now() time.Time { return s.deps.Codec.Now() }

// invalidCredentials is the single external face of every login failure.
func invalidCredentials(reason string) *apperror.Error {
	return apperror.Unauthorized(reason, "incorrect email or password")
}

func invalidRefresh(reason string) *apperror.Error {
	return apperror.Unauthorized(reason, "invalid or expired refresh token")
}

func invalidReset(reason string) *apperror.Error {
	return apperror.Unauthorized(reason, "invalid or expired reset token")
}

func (s *AuthService) reject(ctx context.Context, op string, err *apperror.Error, fields ...zap.Field) *apperror.Error {
	fields = append(fields, zap.String("op", op), zap.String("reason", err.Reason))
	if err.Err != nil {
		fields = append(fields, zap.Error(err.Err))
	}
	s.log.WithContext(ctx).Info("auth rejected", fields...)
	return err
}

func (s *AuthService) publish(ctx context.Context, ev queue.Event) {
	ev.OccurredAt = s.now()
	if err := s.deps.Events.Publish(ctx, ev); err != nil {
		s.log.WithContext(ctx).Warn("publish event failed",
			zap.String("type", string(ev.Type)), zap.Uint64("user_id", ev.UserID), zap.Error(err))
	}
}

// Register creates an active account. A missing default role is tolerated.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	email := strings.TrimSpace(in.Email)
	if err := s.cfg.Policy.Check(in.Password); err != nil {
		return model.User{}, apperror.BadRequest(err.Error())
	}

	_, err := s.deps.Users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return model.User{}, apperror.Conflict(apperror.ReasonDuplicateEmail, "email already registered")
	case !errors.Is(err, repository.ErrNotFound):
		return model.User{}, err
	}

	roleName := RoleUser
	if in.IsSuperuser {
		roleName = RoleAdmin
	}
	var roleID *uint64
	role, err := s.deps.Roles.GetByName(ctx, roleName)
	switch {
	case err == nil:
		roleID = &role.ID
	case errors.Is(err, repository.ErrNotFound):
		s.log.WithContext(ctx).Warn("default role missing, registering without role", zap.String("role", roleName))
	default:
		return model.User{}, err
	}

	hash, err := s.deps.Hasher.Hash(in.Password)
	if err != nil {
		return model.User{}, err
	}
	u := model.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		IsActive:     true,
		IsSuperuser:  in.IsSuperuser,
		RoleID:       roleID,
		CreatedAt:    s.now(),
	}
	if err := s.deps.Users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return model.User{}, apperror.Conflict(apperror.ReasonDuplicateEmail, "email already registered")
		}
		return model.User{}, err
	}

	s.log.WithContext(ctx).Info("account registered", zap.Uint64("user_id", u.ID), zap.String("email", u.Email))
	s.publish(ctx, queue.Event{Type: queue.EventUserRegistered, UserID: u.ID, Email: u.Email})
	return u, nil
}

// dummyVerify burns one bcrypt comparison so unknown emails cost the same
// as wrong passwords.
func (s *AuthService) dummyVerify(plain string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.deps.Hasher.Hash(uuid.NewString()[:32])
	})
	s.deps.Hasher.Verify(plain, s.dummyHash)
}

// Authenticate checks credentials and stamps last_login. It issues no tokens.
func (s *AuthService) Authenticate(ctx context.Context, email, plain string) (model.User, error) {
	email = strings.TrimSpace(email)
	u, err := s.deps.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.dummyVerify(plain)
			return model.User{}, s.reject(ctx, "authenticate", invalidCredentials(apperror.ReasonNotFound), zap.String("email", email))
		}
		return model.User{}, err
	}
	if !u.IsActive {
		return model.User{}, s.reject(ctx, "authenticate", invalidCredentials(apperror.ReasonInactive), zap.Uint64("user_id", u.ID))
	}
	if !s.deps.Hasher.Verify(plain, u.PasswordHash) {
		return model.User{}, s.reject(ctx, "authenticate", invalidCredentials(apperror.ReasonBadPassword), zap.Uint64("user_id", u.ID))
	}

	now := s.now()
	if err := s.deps.Users.TouchLogin(ctx, u.ID, now); err != nil {
		return model.User{}, err
	}
	u.LastLogin = &now
	return u, nil
}

func (s *AuthService) roleName(ctx context.Context, u model.User) (*string, error) {
	if u.RoleID == nil {
		return nil, nil
	}
	role, err := s.deps.Roles.GetByID(ctx, *u.RoleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &role.Name, nil
}

// mint signs an access and refresh token for u and prepares the ledger
// record for the refresh token. Nothing is persisted here.
func (s *AuthService) mint(ctx context.Context, u model.User) (TokenPair, *model.RefreshToken, error) {
	role, err := s.roleName(ctx, u)
	if err != nil {
		return TokenPair{}, nil, err
	}
	subject := strconv.FormatUint(u.ID, 10)

	access := token.Claims{Email: u.Email, Role: role, Kind: token.KindAccess}
	access.Subject = subject
	at, err := s.deps.Codec.Issue(access, s.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, nil, err
	}

	refresh := token.Claims{Email: u.Email, Kind: token.KindRefresh}
	refresh.Subject = subject
	rt, err := s.deps.Codec.Issue(refresh, s.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, nil, err
	}

	pair := TokenPair{
		AccessToken:      at.Token,
		RefreshToken:     rt.Token,
		TokenType:        TokenTypeBearer,
		ExpiresIn:        int64(s.cfg.AccessTTL / time.Second),
		AccessExpiresAt:  at.ExpiresAt,
		RefreshExpiresAt: rt.ExpiresAt,
	}
	rec := &model.RefreshToken{
		UserID:    u.ID,
		TokenHash: token.Fingerprint(rt.Token),
		ExpiresAt: rt.ExpiresAt,
		CreatedAt: s.now(),
	}
	return pair, rec, nil
}

// CreateTokens issues a fresh pair for an authenticated account. The pair
// is returned only once its ledger row is stored.
func (s *AuthService) CreateTokens(ctx context.Context, u model.User) (TokenPair, error) {
	pair, rec, err := s.mint(ctx, u)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.deps.Ledger.Insert(ctx, rec); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Refresh rotates a refresh token: the presented record is revoked and a new
// pair issued in one ledger transaction. Every failure is Unauthorized.
func (s *AuthService) Refresh(ctx context.Context, raw string) (TokenPair, error) {
	claims, err := s.deps.Codec.DecodeKind(raw, token.KindRefresh)
	if err != nil {
		return TokenPair{}, s.reject(ctx, "refresh", invalidRefresh(apperror.ReasonInvalidToken).WithCause(err))
	}
	userID, err := claims.UserID()
	if err != nil {
		return TokenPair{}, s.reject(ctx, "refresh", invalidRefresh(apperror.ReasonInvalidToken).WithCause(err))
	}

	now := s.now()
	rec, err := s.deps.Ledger.FindActive(ctx, token.Fingerprint(raw), now)
	if err != nil {
		reason := apperror.ReasonInvalidToken
		if errors.Is(err, repository.ErrNotFound) {
			reason = apperror.ReasonReusedToken
		}
		return TokenPair{}, s.reject(ctx, "refresh", invalidRefresh(reason).WithCause(err), zap.Uint64("user_id", userID))
	}
	if rec.UserID != userID {
		return TokenPair{}, s.reject(ctx, "refresh", invalidRefresh(apperror.ReasonInvalidToken), zap.Uint64("user_id", userID))
	}

	u, err := s.deps.Users.GetByID(ctx, userID)
	if err != nil {
		return TokenPair{}, s.reject(ctx, "refresh", invalidRefresh(apperror.ReasonNotFound).WithCause(err), zap.Uint64("user_id", userID))
	}
	if !u.IsActive {
		return TokenPair{}, s.reject(ctx, "refresh", invalidRefresh(apperror.ReasonInactive), zap.Uint64("user_id", userID))
	}

	pair, next, err := s.mint(ctx, u)
	if err != nil {
		return TokenPair{}, s.reject(ctx, "refresh", invalidRefresh(apperror.ReasonInvalidToken).WithCause(err), zap.Uint64("user_id", userID))
	}
	if err := s.deps.Ledger.Rotate(ctx, rec.ID, now, next); err != nil {
		reason := apperror.ReasonInvalidToken
		if errors.Is(err, repository.ErrStaleToken) {
			reason = apperror.ReasonReusedToken
		}
		return TokenPair{}, s.reject(ctx, "refresh", invalidRefresh(reason).WithCause(err), zap.Uint64("user_id", userID))
	}
	return pair, nil
}

// Logout blacklists an access token for the rest of its lifetime. It never
// fails: undecodable or already expired tokens need no blacklisting.
func (s *AuthService) Logout(ctx context.Context, raw string) {
	claims, err := s.deps.Codec.DecodeKind(raw, token.KindAccess)
	if err != nil {
		return
	}
	remaining := claims.ExpiresAt.Sub(s.now())
	if remaining <= 0 {
		return
	}
	if err := s.deps.Blacklist.Add(ctx, raw, remaining); err != nil {
		s.log.WithContext(ctx).Error("blacklist write failed", zap.String("sub", claims.Subject), zap.Error(err))
	}
}

// ValidateAccess authenticates a bearer token: blacklist first, then the
// signature and expiry, then the account.
func (s *AuthService) ValidateAccess(ctx context.Context, raw string) (Principal, error) {
	listed, err := s.deps.Blacklist.Contains(ctx, raw)
	if err != nil {
		return Principal{}, err
	}
	if listed {
		return Principal{}, s.reject(ctx, "validate", apperror.Unauthorized(apperror.ReasonBlacklisted, "could not validate credentials"))
	}

	claims, err := s.deps.Codec.DecodeKind(raw, token.KindAccess)
	if err != nil {
		reason := apperror.ReasonInvalidToken
		if errors.Is(err, token.ErrWrongKind) {
			reason = apperror.ReasonWrongKind
		}
		return Principal{}, s.reject(ctx, "validate", apperror.Unauthorized(reason, "could not validate credentials").WithCause(err))
	}
	userID, err := claims.UserID()
	if err != nil {
		return Principal{}, s.reject(ctx, "validate", apperror.Unauthorized(apperror.ReasonInvalidToken, "could not validate credentials").WithCause(err))
	}

	u, err := s.deps.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Principal{}, s.reject(ctx, "validate", apperror.Unauthorized(apperror.ReasonNotFound, "could not validate credentials"), zap.Uint64("user_id", userID))
		}
		return Principal{}, err
	}

	p := Principal{User: u}
	if u.RoleID != nil {
		role, err := s.deps.Roles.GetByID(ctx, *u.RoleID)
		switch {
		case err == nil:
			p.Role = &role
		case !errors.Is(err, repository.ErrNotFound):
			return Principal{}, err
		}
	}
	return p, nil
}

// setPassword stores a new hash and kills every outstanding refresh token.
func (s *AuthService) setPassword(ctx context.Context, u model.User, plain string) error {
	hash, err := s.deps.Hasher.Hash(plain)
	if err != nil {
		return err
	}
	if err := s.deps.Users.UpdatePassword(ctx, u.ID, hash, s.now()); err != nil {
		return err
	}
	if n, err := s.deps.Ledger.RevokeAllForUser(ctx, u.ID); err != nil {
		s.log.WithContext(ctx).Error("revoke refresh tokens failed", zap.Uint64("user_id", u.ID), zap.Error(err))
	} else if n > 0 {
		s.log.WithContext(ctx).Info("refresh tokens revoked", zap.Uint64("user_id", u.ID), zap.Int64("count", n))
	}
	s.publish(ctx, queue.Event{Type: queue.EventPasswordChanged, UserID: u.ID, Email: u.Email})
	return nil
}

// ChangePassword replaces the password of an authenticated account after
// checking the old one.
func (s *AuthService) ChangePassword(ctx context.Context, userID uint64, oldPlain, newPlain string) error {
	u, err := s.deps.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Unauthorized(apperror.ReasonNotFound, "could not validate credentials")
		}
		return err
	}
	if !s.deps.Hasher.Verify(oldPlain, u.PasswordHash) {
		return apperror.BadRequest("incorrect password")
	}
	if err := s.cfg.Policy.Check(newPlain); err != nil {
		return apperror.BadRequest(err.Error())
	}
	return s.setPassword(ctx, u, newPlain)
}

// ForgotPassword issues a reset ticket when email belongs to an active
// account and returns the reset token, or "" otherwise. Callers must answer
// identically in both cases.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) string {
	email = strings.TrimSpace(email)
	log := s.log.WithContext(ctx)

	u, err := s.deps.Users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Error("forgot password lookup failed", zap.Error(err))
		}
		return ""
	}
	if !u.IsActive {
		log.Info("forgot password for inactive account", zap.Uint64("user_id", u.ID))
		return ""
	}

	claims := token.Claims{Email: u.Email, Kind: token.KindReset}
	claims.Subject = strconv.FormatUint(u.ID, 10)
	issued, err := s.deps.Codec.Issue(claims, s.cfg.ResetTTL)
	if err != nil {
		log.Error("issue reset token failed", zap.Error(err))
		return ""
	}
	if err := s.deps.Resets.Put(ctx, u.ID, issued.Token, s.cfg.ResetTTL); err != nil {
		log.Error("store reset ticket failed", zap.Uint64("user_id", u.ID), zap.Error(err))
		return ""
	}

	exp := issued.ExpiresAt
	s.publish(ctx, queue.Event{
		Type:       queue.EventPasswordResetRequested,
		UserID:     u.ID,
		Email:      u.Email,
		ResetToken: issued.Token,
		ExpiresAt:  &exp,
	})
	return issued.Token
}

// ResetPassword redeems a reset token once. The ticket is consumed before
// the password is written, so a token never works twice.
func (s *AuthService) ResetPassword(ctx context.Context, raw, newPlain string) error {
	if err := s.cfg.Policy.Check(newPlain); err != nil {
		return apperror.BadRequest(err.Error())
	}

	claims, err := s.deps.Codec.DecodeKind(raw, token.KindReset)
	if err != nil {
		return s.reject(ctx, "reset", invalidReset(apperror.ReasonInvalidToken).WithCause(err))
	}
	userID, err := claims.UserID()
	if err != nil {
		return s.reject(ctx, "reset", invalidReset(apperror.ReasonInvalidToken).WithCause(err))
	}
	u, err := s.deps.Users.GetByID(ctx, userID)
	if err != nil {
		return s.reject(ctx, "reset", invalidReset(apperror.ReasonNotFound).WithCause(err), zap.Uint64("user_id", userID))
	}

	ok, err := s.deps.Resets.Consume(ctx, userID, raw)
	if err != nil {
		return s.reject(ctx, "reset", invalidReset(apperror.ReasonInvalidToken).WithCause(err), zap.Uint64("user_id", userID))
	}
	if !ok {
		return s.reject(ctx, "reset", invalidReset(apperror.ReasonReusedToken), zap.Uint64("user_id", userID))
	}

	if err := s.setPassword(ctx, u, newPlain); err != nil {
		return s.reject(ctx, "reset", invalidReset(apperror.ReasonInvalidToken).WithCause(err), zap.Uint64("user_id", userID))
	}
	return nil
}
