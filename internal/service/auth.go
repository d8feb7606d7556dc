package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/forumgate/forumgate/internal/config"
	"github.com/forumgate/forumgate/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminDisabled      = errors.New("admin account disabled")
)

// KeyPrincipal is the resolved identity of an API key bearer. The zero
// value is an anonymous caller with no permissions.
type KeyPrincipal struct {
	KeyID int64
	Name  string
	Perms model.Permissions
}

// JWTPrincipal identifies an admin session.
type JWTPrincipal struct {
	AdminID int64
	Email   string
}

// Authorizer resolves bearer tokens into principals: API key values for the
// gated endpoints, JWT session tokens for the admin surface.
type Authorizer struct {
	store     *config.Store
	jwtSecret []byte
}

func NewAuthorizer(store *config.Store, jwtSecret string) *Authorizer {
	return &Authorizer{
		store:     store,
		jwtSecret: []byte(jwtSecret),
	}
}

// ResolveKey maps a raw bearer token and the client address to a principal.
// Every failure mode — empty token, unknown token, address outside the
// key's allowlist — yields the anonymous principal, never an error: callers
// must not be able to tell an unknown key apart from a blocked one.
func (a *Authorizer) ResolveKey(ctx context.Context, token, clientIP string) KeyPrincipal {
	if token == "" {
		return KeyPrincipal{}
	}

	key, err := a.store.LoadAPIKey(ctx, 0, token)
	if err != nil {
		return KeyPrincipal{}
	}

	if !ParseAllowlist(key.AllowedIPs).Contains(clientIP) {
		return KeyPrincipal{}
	}

	return KeyPrincipal{
		KeyID: key.ID,
		Name:  key.Name,
		Perms: key.Permissions(),
	}
}

// LoginAdmin verifies an admin's email and password. Unknown emails and bad
// passwords both come back as ErrInvalidCredentials.
func (a *Authorizer) LoginAdmin(ctx context.Context, email, password, clientIP string) (*model.Admin, error) {
	admin, err := a.store.GetAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !admin.IsActive {
		return nil, ErrAdminDisabled
	}

	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	if err := a.store.UpdateAdminLastLogin(ctx, admin.ID); err != nil {
		return nil, err
	}

	// Failed attempts are not audited; a flood of them would drown the log.
	_ = a.store.AppendAudit(ctx, &model.AuditEntry{
		Actor:  admin.Email,
		Action: model.AuditAdminLogin,
		IP:     clientIP,
	})

	return admin, nil
}

// ValidateJWT verifies a session token and returns the admin identity.
func (a *Authorizer) ValidateJWT(tokenStr string) (*JWTPrincipal, error) {
	claims := &jwtClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidCredentials
	}

	return &JWTPrincipal{
		AdminID: claims.AdminID,
		Email:   claims.Email,
	}, nil
}

// IssueJWT creates a signed session token for the given admin.
func (a *Authorizer) IssueJWT(adminID int64, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwtClaims{
		AdminID: adminID,
		Email:   email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "forumgate",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

type jwtClaims struct {
	AdminID int64  `json:"admin_id"`
	Email   string `json:"email"`
	jwt.RegisteredClaims
}

// HashPassword hashes an admin password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
