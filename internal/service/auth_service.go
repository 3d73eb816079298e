package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-edu/posgrad-api/internal/models"
	appErrors "github.com/lumen-edu/posgrad-api/pkg/errors"
)

type authPersonLookup interface {
	FindByLogin(ctx context.Context, login string) (*models.Person, error)
}

type sessionStore interface {
	Create(ctx context.Context, tokenID string, session models.Session) error
	Touch(ctx context.Context, tokenID string) (bool, error)
	Delete(ctx context.Context, tokenID string) error
}

// AuthService issues JWT access tokens backed by Redis idle sessions.
type AuthService struct {
	people     authPersonLookup
	sessions   sessionStore
	audit      auditRecorder
	jwtSecret  []byte
	expiration time.Duration
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewAuthService constructs an AuthService.
func NewAuthService(people authPersonLookup, sessions sessionStore, audit auditRecorder, jwtSecret string, expiration time.Duration, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if expiration <= 0 {
		expiration = 12 * time.Hour
	}
	return &AuthService{
		people:     people,
		sessions:   sessions,
		audit:      audit,
		jwtSecret:  []byte(jwtSecret),
		expiration: expiration,
		validator:  validate,
		logger:     logger,
	}
}

// Login authenticates a user by login and password. Passwords are compared
// as stored, matching the behavior the data was migrated with. Professors
// cannot log in.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	person, err := s.people.FindByLogin(ctx, strings.TrimSpace(req.Login))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if subtle.ConstantTimeCompare([]byte(person.Password), []byte(req.Password)) != 1 {
		return nil, appErrors.ErrInvalidCredentials
	}
	if person.Role != models.RoleAdministrador && person.Role != models.RoleCoordenador {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot access the admin panel")
	}

	now := time.Now().UTC()
	tokenID := uuid.NewString()
	claims := models.SessionClaims{
		UserID:   person.ID,
		Role:     person.Role,
		Login:    person.Login,
		Email:    person.Email,
		FullName: person.FullName(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   person.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}

	session := models.Session{
		UserID:    person.ID,
		Login:     person.Login,
		Role:      string(person.Role),
		IP:        req.IP,
		UserAgent: req.UserAgent,
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, tokenID, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open session")
	}

	user := models.UserInfo{
		ID:       person.ID,
		Login:    person.Login,
		Email:    person.Email,
		FullName: person.FullName(),
		Role:     person.Role,
	}
	s.recordAudit(ctx, user, models.AuditActionLogin, clientMeta(req.IP, req.UserAgent))

	return &models.LoginResponse{
		AccessToken: signed,
		ExpiresIn:   int64(s.expiration.Seconds()),
		User:        user,
		IssuedAt:    now,
	}, nil
}

// ValidateToken verifies the token signature and refreshes the idle session.
// A missing session means the user sat idle past the timeout.
func (s *AuthService) ValidateToken(ctx context.Context, raw string) (*models.SessionClaims, error) {
	claims := &models.SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid access token")
	}

	alive, err := s.sessions.Touch(ctx, claims.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to refresh session")
	}
	if !alive {
		return nil, appErrors.ErrSessionExpired
	}
	return claims, nil
}

// Logout ends the session behind the token. Invalid tokens are ignored so the
// endpoint stays idempotent.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	claims := &models.SessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil
	}
	if err := s.sessions.Delete(ctx, claims.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close session")
	}
	s.recordAudit(ctx, models.UserInfo{
		ID:       claims.UserID,
		Login:    claims.Login,
		Email:    claims.Email,
		FullName: claims.FullName,
		Role:     claims.Role,
	}, models.AuditActionLogout, nil)
	return nil
}

func (s *AuthService) recordAudit(ctx context.Context, user models.UserInfo, action string, changes []byte) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     user.ID,
		UserEmail:  user.Email,
		Action:     action,
		Entity:     models.AuditEntityAuth,
		EntityID:   &user.ID,
		EntityName: user.FullName,
		Changes:    changes,
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record auth audit log", zap.Error(err))
	}
}

// clientMeta serializes the request origin for the LOGIN trail entry.
func clientMeta(ip, userAgent string) []byte {
	if ip == "" && userAgent == "" {
		return nil
	}
	meta, err := json.Marshal(map[string]string{"ip": ip, "user_agent": userAgent})
	if err != nil {
		return nil
	}
	return meta
}
