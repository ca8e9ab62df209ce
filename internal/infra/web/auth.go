package web

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"ridehail-backoffice/internal/domain"
	"ridehail-backoffice/internal/domain/model"
	"ridehail-backoffice/internal/infra/logging"
)

// Identity is the authenticated caller extracted from a bearer token.
type Identity struct {
	UserID string
	Role   model.Role
}

type identityKey struct{}

// IdentityFrom returns the authenticated identity stored by the auth
// middleware, or false when the request was not authenticated.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

type userClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthManager verifies the bearer tokens issued by the session service.
// Token minting lives outside this core; only verification is needed here.
type AuthManager struct {
	secret []byte
}

func NewAuthManager(secret string) *AuthManager {
	return &AuthManager{secret: []byte(secret)}
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (Identity, error) {
	hdr := r.Header.Get("Authorization")
	if hdr == "" || !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
		return Identity{}, domain.ErrUnauthorized
	}
	return a.parse(strings.TrimSpace(hdr[7:]))
}

func (a *AuthManager) parse(tok string) (Identity, error) {
	claims := &userClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil || !tkn.Valid {
		return Identity{}, domain.ErrUnauthorized
	}
	role := model.Role(claims.Role)
	if claims.Subject == "" || (role != model.RoleDriver && role != model.RoleRider) {
		return Identity{}, domain.ErrUnauthorized
	}
	return Identity{UserID: claims.Subject, Role: role}, nil
}

// Middleware rejects unauthenticated requests and stores the identity in
// the request context.
func (a *AuthManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.ParseFromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "", "")
			return
		}
		ctx := context.WithValue(r.Context(), identityKey{}, id)
		ctx = logging.WithUserID(ctx, id.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
