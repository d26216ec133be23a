package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/orgball2608/fary-stories/internal/domain"
)

// signIn trusts the wallet and fid reported by the connected client and
// issues a session for them.
func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid_body", "invalid request body")
		return
	}

	id := domain.Identity{
		WalletAddress: domain.NormalizeSubjectKey(firstNonZero(req.WalletAddress, req.WalletAddressCamel)),
		FID:           max(req.FID, 0),
	}
	if id.WalletAddress == "" {
		badRequest(w, "missing_wallet", "wallet address is required")
		return
	}

	token, expiresAt, err := s.auth.Issue(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	http.SetCookie(w, s.sessionCookie(token, expiresAt))
	s.logger.Info("User signed in", "wallet_address", id.WalletAddress, "fid", id.FID)
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expiresAt,
		"user":       id,
	})
}

func (s *Server) checkAuth(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "not authenticated", Code: "not_signed_in"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": id})
}

func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	c := s.sessionCookie("", time.Unix(0, 0))
	c.MaxAge = -1
	http.SetCookie(w, c)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) sessionCookie(value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     s.cfg.Auth.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if !s.cfg.IsDevelopment() {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}
