package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"casetrack/internal/api"
	"casetrack/internal/auth"
)

const sessionCookieName = "casetrack_session"

func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req api.AuthLoginRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		s.writeErrorReq(w, r, http.StatusBadRequest,
			badRequestCode(fmt.Errorf("email and password are required"), ErrCodeMissingRequired))
		return
	}

	now := time.Now().UTC()
	limiterKey := clientAddr(r)
	if !s.loginLimiter.Allow(limiterKey, now) {
		loginAttemptsTotal.WithLabelValues("rate_limited").Inc()
		s.writeErrorReq(w, r, http.StatusTooManyRequests, makeAPIError(
			http.StatusTooManyRequests, "resource_exhausted", ErrCodeResourceExhausted,
			fmt.Errorf("too many login attempts; retry later")))
		return
	}

	identity, err := s.authenticator.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.loginLimiter.RegisterFailure(limiterKey, now)
			loginAttemptsTotal.WithLabelValues("failure").Inc()
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("invalid credentials")))
			return
		}
		s.writeErrorReq(w, r, http.StatusInternalServerError, internalError(err))
		return
	}
	s.loginLimiter.Reset(limiterKey)
	loginAttemptsTotal.WithLabelValues("success").Inc()

	token, expiresAt, err := s.tokens.Issue(identity, now)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusInternalServerError, internalError(fmt.Errorf("issue session token: %w", err)))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   requestScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.tokens.TTL() / time.Second),
		Expires:  expiresAt,
	})

	s.writeJSON(w, http.StatusOK, api.AuthMeResponse{Authenticated: true, Identity: identity})
}

func (s *Server) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   requestScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
	})
	s.writeJSON(w, http.StatusOK, api.AuthLoginResponse{OK: true, Message: "logged out"})
}

func (s *Server) handleAuthMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.sessionIdentity(r)
	if !ok {
		s.writeJSON(w, http.StatusOK, api.AuthMeResponse{Authenticated: false})
		return
	}
	s.writeJSON(w, http.StatusOK, api.AuthMeResponse{Authenticated: true, Identity: identity})
}

// requireSession wraps a handler so it only runs with a valid session
// token; the identity ends up in the request context.
func (s *Server) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := s.sessionIdentity(r)
		if !ok {
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("authentication required")))
			return
		}
		next(w, r.WithContext(contextWithIdentity(r.Context(), identity)))
	}
}

func (s *Server) sessionIdentity(r *http.Request) (string, bool) {
	token := sessionTokenFromRequest(r)
	if token == "" {
		return "", false
	}
	session, err := s.tokens.Verify(token, time.Now().UTC())
	if err != nil {
		return "", false
	}
	return session.Identity, true
}

// sessionTokenFromRequest prefers a bearer token over the session
// cookie.
func sessionTokenFromRequest(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, rest, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		if token := strings.TrimSpace(rest); token != "" {
			return token
		}
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

func requestScheme(r *http.Request) string {
	if proto := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		return strings.ToLower(proto)
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
