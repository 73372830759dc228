// AngelaMos | 2026
// jwt.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/viralforge/forge/internal/config"
	"github.com/viralforge/forge/internal/core"
	"github.com/viralforge/forge/internal/middleware"
)

// supabaseRole is the role claim Supabase puts on tokens of signed-in users.
const supabaseRole = "authenticated"

// JWTManager verifies Supabase access tokens signed with the project's
// HS256 secret. It can also mint tokens of the same shape for local
// development and tests.
type JWTManager struct {
	secret []byte
	config config.JWTConfig
	now    func() time.Time
}

func NewJWTManager(cfg config.JWTConfig) (*JWTManager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}

	return &JWTManager{
		secret: []byte(cfg.Secret),
		config: cfg,
		now:    time.Now,
	}, nil
}

// AccessTokenClaims are the inputs for CreateAccessToken.
type AccessTokenClaims struct {
	UserID string
	Email  string
	Role   string
	Plan   string
}

func (m *JWTManager) CreateAccessToken(
	claims AccessTokenClaims,
) (string, error) {
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return "", fmt.Errorf("user id must be a uuid: %w", err)
	}

	now := m.now()
	appMeta := map[string]any{}
	if claims.Role != "" {
		appMeta["role"] = claims.Role
	}
	if claims.Plan != "" {
		appMeta["plan"] = claims.Plan
	}

	builder := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Audience([]string{m.config.Audience}).
		Subject(claims.UserID).
		IssuedAt(now).
		Expiration(now.Add(m.config.AccessTokenExpire)).
		Claim("role", supabaseRole).
		Claim("email", claims.Email).
		Claim("app_metadata", appMeta)
	if m.config.Issuer != "" {
		builder = builder.Issuer(m.config.Issuer)
	}

	token, err := builder.Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256(), m.secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return string(signed), nil
}

func (m *JWTManager) VerifyAccessToken(
	_ context.Context,
	tokenString string,
) (*middleware.AccessTokenClaims, error) {
	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256(), m.secret),
		jwt.WithValidate(true),
		jwt.WithAudience(m.config.Audience),
		jwt.WithAcceptableSkew(m.config.ClockSkew),
		jwt.WithClock(jwt.ClockFunc(m.now)),
	}
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}

	token, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		if isTokenExpiredError(err) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	var role string
	if err := token.Get("role", &role); err != nil || role != supabaseRole {
		return nil, fmt.Errorf(
			"verify token: not a user session: %w",
			core.ErrTokenInvalid,
		)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf(
			"verify token: missing subject: %w",
			core.ErrTokenInvalid,
		)
	}

	claims := &middleware.AccessTokenClaims{
		UserID: subject,
		Role:   middleware.RoleUser,
	}

	var email string
	if err := token.Get("email", &email); err == nil {
		claims.Email = email
	}

	var appMeta map[string]any
	if err := token.Get("app_metadata", &appMeta); err == nil {
		if r, ok := appMeta["role"].(string); ok && r != "" {
			claims.Role = r
		}
		if p, ok := appMeta["plan"].(string); ok {
			claims.Plan = p
		}
	}

	return claims, nil
}

func isTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "exp") &&
		strings.Contains(errStr, "not satisfied")
}
