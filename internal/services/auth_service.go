package services

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"crm-messaging/internal/transport/httpdto"
	crm_errors "crm-messaging/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AuthService verifies credentials issued elsewhere: dashboard access tokens and the shared
// secret the external scheduler presents.
type AuthService struct {
	jwtSecret      []byte
	cronSecretHash []byte
}

func NewAuthService(jwtSecret, cronSecretHash string) *AuthService {
	return &AuthService{
		jwtSecret:      []byte(jwtSecret),
		cronSecretHash: []byte(strings.TrimSpace(cronSecretHash)),
	}
}

type AccessClaims struct {
	OrgID     string `json:"org_id"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, crm_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, crm_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return AccessClaims{}, crm_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, crm_errors.ErrUnauthorized
	}
	if _, err := uuid.Parse(claims.OrgID); err != nil {
		return AccessClaims{}, crm_errors.ErrUnauthorized
	}
	return *claims, nil
}

// VerifyCronSecret compares the presented secret with the configured bcrypt hash. An empty hash
// disables the scheduler endpoint.
func (s *AuthService) VerifyCronSecret(secret string) error {
	if len(s.cronSecretHash) == 0 || secret == "" {
		return crm_errors.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword(s.cronSecretHash, []byte(secret)); err != nil {
		return crm_errors.ErrUnauthorized
	}
	return nil
}

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, crm_errors.ErrInvalidInput), errors.Is(err, crm_errors.ErrUnsupportedChannel):
		return http.StatusBadRequest
	case errors.Is(err, crm_errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, crm_errors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, crm_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, crm_errors.ErrAlreadyExists), errors.Is(err, crm_errors.ErrConflict), errors.Is(err, crm_errors.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, crm_errors.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, crm_errors.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode is the machine-readable code placed in the response envelope.
func ErrorCode(err error) httpdto.ErrorCode {
	switch HTTPStatus(err) {
	case http.StatusBadRequest:
		return httpdto.CodeInvalidRequest
	case http.StatusUnauthorized:
		return httpdto.CodeUnauthorized
	case http.StatusForbidden:
		return httpdto.CodeForbidden
	case http.StatusNotFound:
		return httpdto.CodeNotFound
	case http.StatusConflict:
		return httpdto.CodeConflict
	case http.StatusTooManyRequests:
		return httpdto.CodeRateLimited
	case http.StatusServiceUnavailable:
		return httpdto.CodeUnavailable
	default:
		return httpdto.CodeInternal
	}
}

type ctxKey string

var orgIDKey ctxKey = "org_id"
var userIDKey ctxKey = "user_id"
var sessionIDKey ctxKey = "session_id"

func WithPrincipalContext(ctx context.Context, orgID, userID uuid.UUID, sessionID string) context.Context {
	ctx = context.WithValue(ctx, orgIDKey, orgID)
	ctx = context.WithValue(ctx, userIDKey, userID)
	if sessionID != "" {
		ctx = context.WithValue(ctx, sessionIDKey, sessionID)
	}
	return ctx
}

func OrgIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	orgID, ok := ctx.Value(orgIDKey).(uuid.UUID)
	return orgID, ok && orgID != uuid.Nil
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDKey).(uuid.UUID)
	return userID, ok
}

// SessionIDFromContext returns the browser session of the caller, used to keep its own
// mutations out of its stream.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	sessionID, ok := ctx.Value(sessionIDKey).(string)
	return sessionID, ok
}
