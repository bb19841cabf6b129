package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gestentre/internal/auth"
	"gestentre/internal/models"
	"gestentre/internal/storage"

	"github.com/go-playground/validator/v10"
)

type Service interface {
	Login(ctx context.Context, email, password string) (LoginResult, error)
	Authenticate(ctx context.Context, token string) (models.AuthUser, error)
	EnsureAdmin(ctx context.Context, email, name, password string) (bool, error)
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      models.AuthUser
}

// Anything beyond presence is left to the credential check, so a malformed
// email fails the same way an unknown one does.
type loginInput struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

type service struct {
	storage    storage.Storage
	tokens     *auth.TokenManager
	bcryptCost int
	log        *slog.Logger
	validate   *validator.Validate

	// compared against when the email is unknown so both failure paths cost one bcrypt run
	dummyHash string
}

func NewService(st storage.Storage, tokens *auth.TokenManager, bcryptCost int, lgr *slog.Logger) (*service, error) {
	const op = "service.NewService"

	dummy, err := auth.HashPassword("gestentre-dummy-password", bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &service{
		storage:    st,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		log:        lgr,
		validate:   validator.New(),
		dummyHash:  dummy,
	}, nil
}

func (s *service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	const op = "service.Login"

	log := s.log.With(slog.String("op", op))

	in := loginInput{Email: strings.TrimSpace(email), Password: password}
	if err := s.validate.Struct(in); err != nil {
		return LoginResult{}, newError(KindValidation, MsgCredentialsRequired, err)
	}

	creds, err := s.storage.GetCredentialsByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			auth.CheckPasswordHash(s.dummyHash, in.Password)
			return LoginResult{}, newError(KindAuthentication, MsgInvalidCredentials, err)
		}
		log.Error("failed to get credentials", slog.Any("error", err))
		return LoginResult{}, newError(KindStorage, MsgInternal, fmt.Errorf("%s: %w", op, err))
	}

	if ok := auth.CheckPasswordHash(creds.PasswordHash, in.Password); !ok {
		return LoginResult{}, newError(KindAuthentication, MsgInvalidCredentials, fmt.Errorf("%s: wrong password", op))
	}

	user := creds.User
	token, expiresAt, err := s.tokens.GenerateJWT(user.ID, user.Role, user.Email)
	if err != nil {
		log.Error("failed to sign token", slog.Any("error", err))
		return LoginResult{}, newError(KindStorage, MsgInternal, fmt.Errorf("%s: %w", op, err))
	}

	if err := s.storage.UpdateLastLogin(ctx, user.ID); err != nil {
		log.Warn("failed to update last login", slog.Any("user_id", user.ID), slog.Any("error", err))
	}

	log.Info("user logged in", slog.Any("user_id", user.ID))

	return LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.AuthUser(),
	}, nil
}

// Authenticate verifies token and re-reads the user it names. A token is only
// honoured while its user is still active, whatever its expiry says.
func (s *service) Authenticate(ctx context.Context, token string) (models.AuthUser, error) {
	const op = "service.Authenticate"

	if token == "" {
		return models.AuthUser{}, newError(KindAuthentication, MsgTokenRequired, nil)
	}

	claims, err := s.tokens.ParseJWT(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return models.AuthUser{}, newError(KindAuthentication, MsgInvalidToken, err)
		}
		return models.AuthUser{}, newError(KindAuthorization, MsgInvalidToken, err)
	}

	user, err := s.storage.GetActiveUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.AuthUser{}, newError(KindAuthentication, MsgUserInactive, err)
		}
		s.log.Error("failed to re-fetch user", slog.String("op", op), slog.Any("user_id", claims.UserID), slog.Any("error", err))
		return models.AuthUser{}, newError(KindStorage, MsgInternal, fmt.Errorf("%s: %w", op, err))
	}

	return user.AuthUser(), nil
}

// EnsureAdmin creates an active admin with the given email unless a user with
// that email already exists. It reports whether a user was created.
func (s *service) EnsureAdmin(ctx context.Context, email, name, password string) (bool, error) {
	const op = "service.EnsureAdmin"

	_, err := s.storage.GetUserByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.storage.CreateUser(ctx, models.User{
		Name:   name,
		Email:  email,
		Role:   models.RoleAdmin,
		Active: true,
	}, hash)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}
