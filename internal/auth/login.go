package auth

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"relief-tokens/internal/logger"
	"relief-tokens/internal/models"
)

type AdminDBLayer interface {
	GetAdminByUsername(username string) (*models.Admin, error)
}

// LoginHandler authenticates admins with bcrypt and issues a JWT. Failed
// attempts count against the redis-backed limiter keyed by client address.
type LoginHandler struct {
	DB        AdminDBLayer
	Limiter   *LoginLimiter
	JWTSecret string
	TokenTTL  time.Duration
	Logger    *logger.Logger
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	addr := clientAddr(r)

	if h.Limiter != nil {
		allowed, err := h.Limiter.Allow(addr)
		if err != nil {
			http.Error(w, "login unavailable", http.StatusInternalServerError)
			return
		}
		if !allowed {
			if h.Logger != nil {
				h.Logger.LogSecurity("RATE_LIMIT", "too many login attempts from "+addr)
			}
			http.Error(w, "too many attempts, try again later", http.StatusTooManyRequests)
			return
		}
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "username and password required", http.StatusBadRequest)
		return
	}

	admin, err := h.DB.GetAdminByUsername(req.Username)
	if err != nil {
		h.recordFailure(addr, req.Username)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		h.recordFailure(addr, req.Username)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := IssueJWT(h.JWTSecret, admin.ID, admin.Username, h.TokenTTL)
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	if h.Limiter != nil {
		_ = h.Limiter.Reset(addr)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{Token: token, Username: admin.Username})
}

func (h *LoginHandler) recordFailure(addr, username string) {
	if h.Limiter != nil {
		_ = h.Limiter.RecordFailure(addr)
	}
	if h.Logger != nil {
		h.Logger.LogSecurity("LOGIN_FAILED", "failed login for "+username+" from "+addr)
	}
}

func clientAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
