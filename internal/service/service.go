package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"docmanager/internal/auth"
	"docmanager/internal/config"
	"docmanager/internal/files"
	"docmanager/internal/models"
	"docmanager/internal/notify"
	"docmanager/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("authentication required")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrFileTooLarge       = errors.New("file exceeds the size limit")
)

type Service struct {
	cfg    config.Config
	st     *store.Store
	tokens *auth.TokenService
	files  *files.Local
	sender notify.Sender
	log    logrus.FieldLogger
	now    func() time.Time
}

type Option func(*Service)

// WithClock sets the time source for time-range filters, statistics and
// reset token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger used for best-effort cleanup failures.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Service) { s.log = l }
}

func New(cfg config.Config, st *store.Store, tokens *auth.TokenService, fs *files.Local, sender notify.Sender, opts ...Option) *Service {
	s := &Service{cfg: cfg, st: st, tokens: tokens, files: fs, sender: sender, log: logrus.StandardLogger(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Store() *store.Store { return s.st }

// mapStoreErr translates repository sentinels into service sentinels.
func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

type RegisterInput struct {
	Email       string      `json:"email" validate:"required,email,max=255"`
	Password    string      `json:"password" validate:"required"`
	FullName    string      `json:"full_name" validate:"required,max=255"`
	StudentCode string      `json:"student_code" validate:"max=50"`
	Role        models.Role `json:"role" validate:"omitempty,oneof=student teacher staff"`
	Department  string      `json:"department" validate:"max=255"`
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	if err := validateStruct(in); err != nil {
		return models.User{}, err
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return models.User{}, invalid("password", err.Error())
	}
	if in.Role == "" {
		in.Role = models.RoleStudent
	}
	if !in.Role.SelfAssignable() {
		return models.User{}, invalid("role", "role cannot be self-assigned")
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}
	u, err := s.st.CreateUser(ctx, models.User{
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		StudentCode:  optional(in.StudentCode),
		Role:         in.Role,
		Department:   optional(in.Department),
	})
	if errors.Is(err, store.ErrConflict) {
		return models.User{}, ErrEmailTaken
	}
	return u, err
}

type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

// Login fails with ErrInvalidCredentials for an unknown email, a blocked
// account or a wrong password alike.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	u, err := s.st.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			auth.VerifyUnknownUser(password)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !auth.VerifyPassword(u.PasswordHash, password) || u.IsBlocked {
		return LoginResult{}, ErrInvalidCredentials
	}
	tok, exp, err := s.tokens.Issue(u)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: tok, ExpiresAt: exp, User: u}, nil
}

// Authenticate resolves a bearer token to its current, unblocked user.
func (s *Service) Authenticate(ctx context.Context, token string) (models.User, error) {
	claims, err := s.tokens.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return models.User{}, ErrUnauthorized
		}
		return models.User{}, err
	}
	u, err := s.st.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, ErrUnauthorized
		}
		return models.User{}, err
	}
	if u.IsBlocked {
		return models.User{}, ErrUnauthorized
	}
	return u, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.tokens.Revoke(ctx, token); err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return ErrUnauthorized
		}
		return err
	}
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	u, err := s.st.GetUserByID(ctx, userID)
	if err != nil {
		return mapStoreErr(err)
	}
	if !auth.VerifyPassword(u.PasswordHash, oldPassword) {
		return invalid("old_password", "current password is incorrect")
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return invalid("new_password", err.Error())
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return mapStoreErr(s.st.UpdateUserPasswordHash(ctx, userID, hash))
}

// CreateResetToken issues a single-use reset token for a registered email.
// Only the token hash is persisted.
func (s *Service) CreateResetToken(ctx context.Context, email string) (string, error) {
	u, err := s.st.GetUserByEmail(ctx, email)
	if err != nil {
		return "", mapStoreErr(err)
	}
	raw, hash, err := auth.NewResetToken()
	if err != nil {
		return "", err
	}
	expires := s.now().UTC().Add(s.cfg.PasswordResetTTL)
	if err := s.st.CreatePasswordReset(ctx, u.Email, hash, expires); err != nil {
		return "", err
	}
	return raw, nil
}

// RequestPasswordReset creates a token and hands it to the configured sender.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	raw, err := s.CreateResetToken(ctx, email)
	if err != nil {
		return err
	}
	if err := s.sender.SendPasswordReset(ctx, strings.ToLower(strings.TrimSpace(email)), raw); err != nil {
		return fmt.Errorf("deliver reset token: %w", err)
	}
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return invalid("token", "token is required")
	}
	if err := auth.ValidatePassword(newPassword); err != nil {
		return invalid("new_password", err.Error())
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.st.ConsumePasswordReset(ctx, auth.HashToken(token), hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return invalid("token", "reset token is invalid or expired")
		}
		return err
	}
	return nil
}

// EnsureBootstrapAdmin creates or refreshes the configured administrator.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context) error {
	if s.cfg.BootstrapAdminEmail == "" || s.cfg.BootstrapAdminPassword == "" {
		return nil
	}
	if err := auth.ValidatePassword(s.cfg.BootstrapAdminPassword); err != nil {
		return fmt.Errorf("bootstrap admin password: %w", err)
	}
	hash, err := auth.HashPassword(s.cfg.BootstrapAdminPassword)
	if err != nil {
		return err
	}
	return s.st.EnsureAdmin(ctx, s.cfg.BootstrapAdminEmail, "Administrator", hash)
}
