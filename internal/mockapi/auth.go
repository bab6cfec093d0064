package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the payload of tokens issued by the mock backend
type Claims struct {
	Role     string `json:"role"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type tokenService struct {
	secret  []byte
	ttl     time.Duration
	mu      sync.Mutex
	revoked map[string]time.Time
}

func newTokenService(secret string, ttl time.Duration) *tokenService {
	return &tokenService{
		secret:  []byte(secret),
		ttl:     ttl,
		revoked: make(map[string]time.Time),
	}
}

func (t *tokenService) issue(a *account) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role:     string(a.role),
		Username: a.username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   a.email,
			Issuer:    "nexus-mock",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

var errRevoked = errors.New("token revoked")

func (t *tokenService) verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid token signing method")
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, revoked := t.revoked[claims.ID]; revoked {
		return nil, errRevoked
	}
	return claims, nil
}

// revoke blacklists a token until it would have expired anyway
func (t *tokenService) revoke(claims *Claims) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for id, exp := range t.revoked {
		if exp.Before(now) {
			delete(t.revoked, id)
		}
	}
	exp := now.Add(t.ttl)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	t.revoked[claims.ID] = exp
}

type claimsKey struct{}

func claimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}

func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	// EventSource clients cannot set headers
	return r.URL.Query().Get("token")
}

// authenticate rejects requests without a valid token with 403
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		if token == "" {
			writeError(w, http.StatusForbidden, "SESSION_INVALID", "authentication required")
			return
		}
		claims, err := s.tokens.verify(token)
		if err != nil {
			slog.Debug("rejected token", "path", r.URL.Path, "error", err)
			writeError(w, http.StatusForbidden, "SESSION_INVALID", "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r.Context())
		if claims == nil || claims.Role != string(models.RoleAdmin) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "administrator role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid JSON body")
		return
	}
	acct, ok := s.store.authenticate(req.Email, req.Password)
	if !ok {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		return
	}
	token, err := s.tokens.issue(acct)
	if err != nil {
		slog.Error("failed to issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to issue token")
		return
	}
	slog.Info("user logged in", "email", acct.email, "role", acct.role)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:    token,
		ID:       acct.id,
		Username: acct.username,
		Role:     string(acct.role),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg models.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid JSON body")
		return
	}
	if err := reg.Validate(); err != nil {
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed", *ve)
			return
		}
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}

	_, err := s.store.addAccount(Account{
		Username: strings.TrimSpace(reg.Username),
		Email:    strings.TrimSpace(reg.Email),
		Password: reg.Password,
		Role:     models.RoleUser,
	})
	switch {
	case errors.Is(err, errEmailTaken):
		writeError(w, http.StatusBadRequest, "EMAIL_TAKEN", "Email already taken")
		return
	case errors.Is(err, errUsernameTaken):
		writeError(w, http.StatusBadRequest, "USERNAME_TAKEN", "Username already taken")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	writeText(w, http.StatusOK, "User registered successfully")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.tokens.revoke(claimsFrom(r.Context()))
	writeText(w, http.StatusOK, "Logged out")
}
