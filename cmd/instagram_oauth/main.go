// Command instagram_oauth is a development helper: it runs the Instagram
// authorization-code flow locally and prints the long-lived token, ready to be
// posted to /api/sns/connect.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"rateKit/internal/domain"
	instagraminfra "rateKit/internal/infrastructure/platform/instagram"
)

// Development only: one pending state at a time.
var (
	stateMu   sync.Mutex
	lastState string
)

func newState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func handleStart(adapter *instagraminfra.Adapter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := newState()
		if err != nil {
			http.Error(w, "could not generate state", http.StatusInternalServerError)
			return
		}

		stateMu.Lock()
		lastState = state
		stateMu.Unlock()

		http.Redirect(w, r, adapter.BuildAuthorizationURL(state), http.StatusFound)
	}
}

func handleCallback(adapter *instagraminfra.Adapter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		state := r.URL.Query().Get("state")

		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		stateMu.Lock()
		expected := lastState
		lastState = ""
		stateMu.Unlock()
		if expected == "" || state != expected {
			http.Error(w, "invalid state", http.StatusBadRequest)
			return
		}

		ctx := r.Context()
		short, err := adapter.ExchangeCode(ctx, code)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		grant := adapter.UpgradeToLongLived(ctx, short.AccessToken)

		payload := map[string]any{
			"platform":    "INSTAGRAM",
			"accessToken": grant.AccessToken,
			"longLived":   grant.LongLived,
		}
		if expiry := grant.ExpiryFrom(time.Now().UTC()); !expiry.IsZero() {
			payload["tokenExpireAt"] = expiry.Format(time.RFC3339)
		}
		out, _ := json.MarshalIndent(payload, "", "  ")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(out)

		fmt.Println("\n==============================")
		fmt.Println("✅ INSTAGRAM TOKEN")
		fmt.Println(string(out))
		fmt.Println("==============================")

		identity, err := adapter.FetchIdentity(context.WithoutCancel(ctx), &domain.Credential{
			Platform:    domain.PlatformInstagram,
			AccessToken: grant.AccessToken,
		})
		if err == nil {
			fmt.Printf("account: %s (%s)\n", identity.DisplayName, identity.ExternalAccountID)
		}
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("⚠️  .env not loaded")
	}

	required := []string{
		"INSTAGRAM_CLIENT_ID",
		"INSTAGRAM_CLIENT_SECRET",
		"INSTAGRAM_REDIRECT_URI",
	}
	for _, k := range required {
		if os.Getenv(k) == "" {
			fmt.Printf("❌ missing %s in .env\n", k)
			return
		}
	}

	adapter := instagraminfra.NewAdapter(instagraminfra.Config{
		ClientID:     os.Getenv("INSTAGRAM_CLIENT_ID"),
		ClientSecret: os.Getenv("INSTAGRAM_CLIENT_SECRET"),
		RedirectURI:  os.Getenv("INSTAGRAM_REDIRECT_URI"),
	})

	http.HandleFunc("/api/oauth/instagram/start", handleStart(adapter))
	http.HandleFunc("/api/oauth/instagram/callback", handleCallback(adapter))

	addr := os.Getenv("OAUTH_HELPER_ADDR")
	if addr == "" {
		addr = ":3000"
	}

	fmt.Println("✅ Instagram OAuth ready")
	fmt.Printf("➡ open http://localhost%s/api/oauth/instagram/start\n", addr)

	if err := http.ListenAndServe(addr, nil); err != nil {
		fmt.Println("server error:", err)
	}
}
