package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"MaizeAIBackend/models"
	"MaizeAIBackend/session"
)

type contextKey string

const claimsKey contextKey = "claims"

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is what a signed token carries.
type Claims struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
	Email  string      `json:"email,omitempty"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (m *TokenManager) Generate(u models.User) (string, error) {
	now := m.now()
	claims := Claims{
		UserID: u.ID,
		Role:   u.Role,
		Email:  u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *TokenManager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Authenticator verifies bearer tokens and attaches the caller's session.
type Authenticator struct {
	tokens   *TokenManager
	revoked  session.RevocationList
	sessions *session.Manager
	log      *zap.Logger
}

func NewAuthenticator(tokens *TokenManager, revoked session.RevocationList, sessions *session.Manager, log *zap.Logger) *Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{tokens: tokens, revoked: revoked, sessions: sessions, log: log}
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// Middleware answers 401 for a missing, invalid or revoked token. Valid
// requests carry the claims and the resolved session in their context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			redirect(w, http.StatusUnauthorized, session.LoginPath, "Authorization header required")
			return
		}
		claims, err := a.tokens.Parse(raw)
		if err != nil {
			redirect(w, http.StatusUnauthorized, session.LoginPath, "Invalid or expired token")
			return
		}
		revoked, err := a.revoked.IsRevoked(r.Context(), claims.ID)
		if err != nil {
			a.log.Error("error checking token revocation", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Session store unavailable"})
			return
		}
		if revoked {
			redirect(w, http.StatusUnauthorized, session.LoginPath, "Session has ended")
			return
		}

		s, err := a.sessions.Resolve(r.Context(), session.Identity{UserID: claims.UserID, Email: claims.Email, Role: claims.Role})
		if err != nil {
			redirect(w, http.StatusUnauthorized, session.LoginPath, "Invalid token claims")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		ctx = session.WithSession(ctx, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates a route on the session's role. Still-loading sessions
// get a neutral 503 and never reach the handler.
func RequireRole(required models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, _ := session.FromContext(r.Context())
			d := session.Evaluate(s, required)
			switch d.State {
			case session.StateAuthorized:
				next.ServeHTTP(w, r)
			case session.StateInitializing:
				w.Header().Set("Retry-After", "1")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Session initializing"})
			case session.StateInsufficient:
				redirect(w, http.StatusForbidden, d.Redirect, "Insufficient role")
			default:
				redirect(w, http.StatusUnauthorized, d.Redirect, "Authentication required")
			}
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

type redirectBody struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect"`
}

func redirect(w http.ResponseWriter, code int, to, message string) {
	w.Header().Set("Location", to)
	writeJSON(w, code, redirectBody{Error: message, Redirect: to})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
