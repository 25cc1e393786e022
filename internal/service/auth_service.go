package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clothingrental/internal/domain"
	"clothingrental/internal/events"
	"clothingrental/internal/metrics"
	"clothingrental/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// AuthService держит единственный слот сессии. Проверка пароля остается
// заглушкой: общий пароль ИЛИ адрес администратора.
type AuthService struct {
	store        domain.Store
	eventBus     domain.EventPublisher
	logger       *zerolog.Logger
	adminEmail   string
	passwordHash []byte
	now          func() time.Time
}

func NewAuthService(store domain.Store, eventBus domain.EventPublisher, adminEmail, password string, logger *zerolog.Logger) (*AuthService, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash placeholder password: %w", err)
	}
	return &AuthService{
		store:        store,
		eventBus:     eventBus,
		logger:       logger,
		adminEmail:   adminEmail,
		passwordHash: hash,
		now:          time.Now,
	}, nil
}

var _ domain.AuthService = (*AuthService)(nil)

// Login succeeds when a user with email exists and either the shared
// password matches or email is the admin address.
func (s *AuthService) Login(ctx context.Context, email, password string) (bool, error) {
	email = strings.TrimSpace(email)
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return false, err
	}

	var user *models.User
	for i := range users {
		if users[i].Email == email {
			user = &users[i]
			break
		}
	}

	ok := user != nil &&
		(bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) == nil || email == s.adminEmail)
	metrics.IncLogin(ok)
	if !ok {
		s.logger.Info().Str("email", email).Msg("Login rejected")
		return false, nil
	}

	if err := s.store.SetCurrentSession(ctx, user); err != nil {
		return false, err
	}
	s.logger.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("User logged in")
	s.publishEvent(events.EventUserLoggedIn, user, email)
	return true, nil
}

// Logout clears the session slot even when nobody is logged in.
func (s *AuthService) Logout(ctx context.Context) error {
	current, err := s.store.CurrentSession(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read session before logout")
	}
	if err := s.store.SetCurrentSession(ctx, nil); err != nil {
		return err
	}
	if current != nil {
		s.publishEvent(events.EventUserLoggedOut, current, current.Email)
	}
	return nil
}

func (s *AuthService) Current(ctx context.Context) (*models.User, error) {
	return s.store.CurrentSession(ctx)
}

func (s *AuthService) IsAdmin(ctx context.Context) (bool, error) {
	user, err := s.store.CurrentSession(ctx)
	if err != nil {
		return false, err
	}
	return user.IsAdmin(), nil
}

// RequireAdmin returns ErrForbidden unless an admin is logged in.
func (s *AuthService) RequireAdmin(ctx context.Context) error {
	ok, err := s.IsAdmin(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (s *AuthService) EnsureDefaultAdmin(ctx context.Context) error {
	_, err := s.store.EnsureDefaultAdmin(ctx, s.adminEmail)
	return err
}

func (s *AuthService) publishEvent(eventType string, user *models.User, email string) {
	if s.eventBus == nil {
		return
	}

	payload := events.SessionEventPayload{
		UserID: user.ID,
		Email:  email,
		Role:   string(user.Role),
		At:     s.now().UTC(),
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
	}
}
