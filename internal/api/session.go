package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"durgatraders/m/internal/auth"
)

type ctxKey string

const ctxSession ctxKey = "session"

const sessionCookie = "session"

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, ok := h.auth.Validate(bearerToken(r))
		if !ok {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		ctx := context.WithValue(r.Context(), ctxSession, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var creds auth.Credentials
	if err := decodeJSON(r, &creds); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if creds.Username == "" || creds.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	session, err := h.auth.Authenticate(r.Context(), creds)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.log.Warn("failed login", zap.String("username", creds.Username), zap.String("remote", r.RemoteAddr))
		respondError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	if err != nil {
		h.log.Error("login failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "unable to log in")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, map[string]any{
		"message":    "Login successful",
		"username":   session.Username,
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		h.auth.Revoke(token)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *Handler) authStatus(w http.ResponseWriter, r *http.Request) {
	session, ok := h.auth.Validate(bearerToken(r))
	if !ok {
		respondJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"username":      session.Username,
		"expires_at":    session.ExpiresAt,
	})
}
