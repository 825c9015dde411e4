package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"rateKit/internal/domain"
	"rateKit/internal/usecase/sns"
)

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

// requireUser reads the caller identity set by the gateway.
func (s *Server) requireUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(userHeader))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing "+userHeader)
			return
		}
		next(w, r, userID)
	}
}

type connectRequest struct {
	Platform      string `json:"platform"`
	AccessToken   string `json:"accessToken"`
	RefreshToken  string `json:"refreshToken,omitempty"`
	TokenExpireAt string `json:"tokenExpireAt,omitempty"`
	LongLived     bool   `json:"longLived,omitempty"`
}

type connectResponse struct {
	Platform    domain.Platform `json:"platform"`
	AccountID   string          `json:"external_account_id"`
	AccountName string          `json:"account_name"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request, userID string) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		writeError(w, http.StatusBadRequest, "missing accessToken")
		return
	}

	in := sns.CredentialInput{
		AccessToken:  strings.TrimSpace(req.AccessToken),
		RefreshToken: strings.TrimSpace(req.RefreshToken),
		LongLived:    req.LongLived,
	}
	if req.TokenExpireAt != "" {
		at, err := time.Parse(time.RFC3339, req.TokenExpireAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "tokenExpireAt must be RFC3339")
			return
		}
		in.ExpiresAt = at.UTC()
	}

	identity, err := s.cfg.SNS.Connect(r.Context(), userID, domain.Platform(req.Platform), in)
	if err != nil {
		writeServiceError(w, "connect", err)
		return
	}

	writeJSON(w, http.StatusOK, connectResponse{
		Platform:    identity.Platform,
		AccountID:   identity.ExternalAccountID,
		AccountName: identity.DisplayName,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request, userID string) {
	platform := domain.Platform(mux.Vars(r)["platform"])
	if err := s.cfg.SNS.RefreshStats(r.Context(), userID, platform); err != nil {
		writeServiceError(w, "refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRefreshAll(w http.ResponseWriter, r *http.Request, userID string) {
	results, err := s.cfg.SNS.RefreshAllStats(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "refresh_all", err)
		return
	}
	if results == nil {
		results = []sns.RefreshResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, userID string) {
	platform := domain.Platform(mux.Vars(r)["platform"])
	snap, err := s.cfg.SNS.LatestStats(r.Context(), userID, platform)
	if err != nil {
		writeServiceError(w, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request, userID string) {
	accounts, err := s.cfg.SNS.Portfolio(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "portfolio", err)
		return
	}
	if accounts == nil {
		accounts = []sns.AccountPortfolio{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

type priceRequest struct {
	Platform  string `json:"platform"`
	BrandType string `json:"brandType"`
}

func (s *Server) handlePriceCalc(w http.ResponseWriter, r *http.Request, userID string) {
	var req priceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	card, err := s.cfg.Pricing.ComputePlatformRate(r.Context(), userID, domain.Platform(req.Platform), domain.ParseBrandTier(req.BrandType))
	if err != nil {
		writeServiceError(w, "price_calc", err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handlePriceCalcAll(w http.ResponseWriter, r *http.Request, userID string) {
	var req priceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	cards, err := s.cfg.Pricing.ComputeAllRates(r.Context(), userID, domain.ParseBrandTier(req.BrandType))
	if err != nil {
		writeServiceError(w, "price_calc_all", err)
		return
	}
	if cards == nil {
		cards = []domain.RateCard{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rates": cards})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, userID string) {
	sum, err := s.cfg.Profile.Summary(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "profile", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// statusFor maps engine errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnsupportedPlatform),
		errors.Is(err, domain.ErrAccountNotLinked),
		errors.Is(err, domain.ErrNoSnapshot),
		errors.Is(err, domain.ErrCallback):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUpstreamAuth):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Str("op", op).Err(err).Msg("api: request failed")
		msg = "internal error"
	} else {
		log.Debug().Str("op", op).Int("status", status).Err(err).Msg("api: request rejected")
	}
	writeError(w, status, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
