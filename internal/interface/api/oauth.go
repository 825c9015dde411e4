package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"rateKit/internal/domain"
)

func (s *Server) handleOAuthStart(w http.ResponseWriter, r *http.Request, userID string) {
	platform := domain.Platform(mux.Vars(r)["platform"])

	req, err := s.cfg.SNS.BuildAuthorizationURL(r.Context(), userID, platform)
	if err != nil {
		writeServiceError(w, "oauth_start", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// handleOAuthCallback always answers with a redirect to the frontend carrying
// either connected=<platform> or error=<reason>.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if denied := q.Get("error"); denied != "" {
		log.Info().Str("platform", mux.Vars(r)["platform"]).Str("reason", denied).Msg("oauth: authorization denied")
		s.redirectFrontend(w, r, "error", domain.CallbackDenied)
		return
	}

	identity, err := s.cfg.SNS.HandleCallback(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		reason := domain.CallbackStoreFailed
		var cbErr *domain.CallbackError
		if errors.As(err, &cbErr) {
			reason = cbErr.Reason
		}
		log.Warn().Str("platform", mux.Vars(r)["platform"]).Str("reason", reason).Err(err).Msg("oauth: callback rejected")
		s.redirectFrontend(w, r, "error", reason)
		return
	}

	s.redirectFrontend(w, r, "connected", string(identity.Platform))
}

func (s *Server) redirectFrontend(w http.ResponseWriter, r *http.Request, key, value string) {
	target := s.cfg.FrontendURL + "/sns"
	if u, err := url.Parse(target); err == nil {
		q := u.Query()
		q.Set(key, value)
		u.RawQuery = q.Encode()
		target = u.String()
	}
	http.Redirect(w, r, target, http.StatusFound)
}
