package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kvasnecov/institute_platform/internal/models"
	"github.com/kvasnecov/institute_platform/internal/repo"
	"github.com/kvasnecov/institute_platform/internal/revocation"
	pkg_hash "github.com/kvasnecov/institute_platform/pkg/hash"
	"github.com/kvasnecov/institute_platform/pkg/logging"
	"github.com/kvasnecov/institute_platform/pkg/tokens"
)

// UserDirectory is the persistence boundary for user identity. The
// relational schema behind it is out of the session core's hands.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByEmailOrUsername(ctx context.Context, identifier string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	CreateLocal(ctx context.Context, email, name, passwordHash, username string) (*models.User, error)
	UpsertOAuth(ctx context.Context, profile models.OAuthProfile) (*models.User, error)
	Update(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error)
}

// EventPublisher mirrors the kafka producer. Nil means events are disabled.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, event map[string]any) error
}

type SessionService struct {
	users   UserDirectory
	codec   *tokens.Codec
	revoked revocation.Store
	events  EventPublisher

	accessTTL      time.Duration
	refreshTTL     time.Duration
	longRefreshTTL time.Duration
}

type AuthResult struct {
	User          *models.User
	AccessToken   string
	RefreshToken  string
	AccessExp     time.Time
	RefreshExp    time.Time
	IsLongSession bool
}

func NewSessionService(
	users UserDirectory,
	codec *tokens.Codec,
	revoked revocation.Store,
	events EventPublisher,
	accessTTL, refreshTTL, longRefreshTTL time.Duration,
) *SessionService {
	return &SessionService{
		users:          users,
		codec:          codec,
		revoked:        revoked,
		events:         events,
		accessTTL:      accessTTL,
		refreshTTL:     refreshTTL,
		longRefreshTTL: longRefreshTTL,
	}
}

func (s *SessionService) Register(ctx context.Context, email, name, password, username string) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "session.register")

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		l.Warn("register_failed", "status", 409, "reason", "email already registered")
		return nil, fmt.Errorf("email is already registered: %w", ErrConflict)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	if username != "" {
		if existing, err := s.users.FindByEmailOrUsername(ctx, username); err == nil && existing != nil {
			l.Warn("register_failed", "status", 409, "reason", "username taken")
			return nil, fmt.Errorf("username is already taken: %w", ErrConflict)
		} else if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
	}

	pwHash, err := pkg_hash.HashPassword(password)
	if err != nil {
		l.Error("register_failed", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user, err := s.users.CreateLocal(ctx, email, name, pwHash, username)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, "user_registered", user)

	return s.issueTokens(ctx, user, false)
}

func (s *SessionService) Login(ctx context.Context, identifier, password string, rememberMe bool) (*AuthResult, error) {
	l := logging.FromContext(ctx).With("svc", "session.login")

	user, err := s.users.FindByEmailOrUsername(ctx, identifier)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.HasPassword() {
		// pure-OAuth account attempting password login
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		l.Warn("login_failed", "status", 403, "reason", "account deactivated")
		return nil, ErrAccountDeactivated
	}
	if !pkg_hash.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	s.publish(ctx, "user_logged_in", user)

	return s.issueTokens(ctx, user, rememberMe)
}

func (s *SessionService) OAuthLogin(ctx context.Context, profile models.OAuthProfile) (*AuthResult, error) {
	user, err := s.users.UpsertOAuth(ctx, profile)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}

	s.publish(ctx, "user_logged_in", user)

	return s.issueTokens(ctx, user, false)
}

// Refresh rotates a refresh token: the consumed tokenId is deleted before
// the new pair is issued, so replaying the old token fails closed. Unknown
// and already-consumed tokens share the same failure path.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}

	claims, err := s.codec.ParseRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	if claims.Type != tokens.RefreshType || claims.Subject == "" || claims.TokenID == "" {
		return nil, ErrInvalidRefreshToken
	}

	removed, err := s.revoked.Revoke(ctx, claims.Subject, claims.TokenID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}

	return s.issueTokens(ctx, user, false)
}

// Logout is best-effort cleanup: a missing, expired or otherwise
// unverifiable token is a no-op, never an error.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	claims, err := s.codec.ParseRefresh(refreshToken)
	if err != nil {
		return
	}
	if claims.Type != tokens.RefreshType || claims.Subject == "" || claims.TokenID == "" {
		return
	}
	if _, err := s.revoked.Revoke(ctx, claims.Subject, claims.TokenID); err != nil {
		logging.FromContext(ctx).Warn("logout revoke failed", "error", err)
	}
}

func (s *SessionService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// ChangePassword re-hashes and stores the new password. It deliberately
// leaves outstanding refresh tokens alone; they ride out their TTL.
func (s *SessionService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNoPassword
		}
		return err
	}
	if !user.HasPassword() {
		return ErrNoPassword
	}
	if !pkg_hash.CheckPassword(user.PasswordHash, currentPassword) {
		return ErrWrongPassword
	}

	pwHash, err := pkg_hash.HashPassword(newPassword)
	if err != nil {
		return err
	}
	_, err = s.users.Update(ctx, userID, models.UserUpdate{PasswordHash: &pwHash})
	return err
}

// Avatar is the optional file part of a profile update.
type Avatar struct {
	Data     []byte
	MimeType string
}

func (s *SessionService) UpdateProfile(ctx context.Context, userID string, upd models.UserUpdate, avatar *Avatar) (*models.User, error) {
	if upd.Username != nil && *upd.Username != "" {
		existing, err := s.users.FindByEmailOrUsername(ctx, *upd.Username)
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return nil, err
		}
		if err == nil && existing.ID != userID {
			return nil, fmt.Errorf("username is already taken: %w", ErrConflict)
		}
	}

	if avatar != nil {
		upd.AvatarData = avatar.Data
		upd.AvatarMimeType = &avatar.MimeType
	}
	// password changes go through ChangePassword only
	upd.PasswordHash = nil

	user, err := s.users.Update(ctx, userID, upd)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *SessionService) GetAvatar(ctx context.Context, userID string) (*Avatar, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil || len(user.AvatarData) == 0 {
		return nil, ErrNotFound
	}
	return &Avatar{Data: user.AvatarData, MimeType: user.AvatarMimeType}, nil
}

func (s *SessionService) refreshTTLFor(long bool) time.Duration {
	if long {
		return s.longRefreshTTL
	}
	return s.refreshTTL
}

// issueTokens builds and signs the pair concurrently, then persists the
// revocation entry. The store write must land before success is reported:
// a crash after signing but before the write means the refresh later fails
// closed, which is the safe direction.
func (s *SessionService) issueTokens(ctx context.Context, user *models.User, long bool) (*AuthResult, error) {
	now := time.Now()
	accessExp := now.Add(s.accessTTL)
	refreshTTL := s.refreshTTLFor(long)
	refreshExp := now.Add(refreshTTL)
	tokenID := tokens.NewTokenID()

	var accessToken, refreshToken string
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accessToken, err = s.codec.SignAccess(user.ID, user.Email, user.Role, accessExp)
		return err
	})
	g.Go(func() error {
		var err error
		refreshToken, err = s.codec.SignRefresh(user.ID, tokenID, refreshExp)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.revoked.Store(ctx, user.ID, tokenID, refreshTTL); err != nil {
		return nil, err
	}

	return &AuthResult{
		User:          user,
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		AccessExp:     accessExp,
		RefreshExp:    refreshExp,
		IsLongSession: long,
	}, nil
}

func (s *SessionService) publish(ctx context.Context, eventType string, user *models.User) {
	if s.events == nil {
		return
	}
	event := map[string]any{
		"type":   eventType,
		"userId": user.ID,
		"email":  user.Email,
	}
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.events.PublishEvent(pubCtx, "user_events", user.ID, event); err != nil {
		logging.FromContext(ctx).Error("event publish failed", "type", eventType, "error", err)
	}
}
