// internal/handler/tracking_handler.go
package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lurehook/lurehook-backend/internal/repository"
)

// 1x1 transparent GIF served to every open-tracking request.
const trackingPixelBase64 = "R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7"

var trackingPixel, _ = base64.StdEncoding.DecodeString(trackingPixelBase64)

// TrackingHandler records target interactions keyed by tracking token.
// Every endpoint answers identically for known, unknown, and repeated
// tokens so a response never leaks whether an event was recorded.
type TrackingHandler struct {
	Targets repository.CampaignTargetRepositoryInterface
	Logger  *zap.Logger
}

// TrackOpen serves the tracking pixel and records the first open.
func (h *TrackingHandler) TrackOpen(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	recorded, err := h.Targets.MarkOpened(token, time.Now().UTC())
	if err != nil {
		h.Logger.Error("failed to record open", zap.String("token", token), zap.Error(err))
	} else if recorded {
		h.Logger.Info("email opened", zap.String("token", token))
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	w.Write(trackingPixel)
}

// TrackClick records the first click and shows the awareness landing page.
func (h *TrackingHandler) TrackClick(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	recorded, err := h.Targets.MarkClicked(token, time.Now().UTC())
	if err != nil {
		h.Logger.Error("failed to record click", zap.String("token", token), zap.Error(err))
	} else if recorded {
		h.Logger.Info("link clicked", zap.String("token", token))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(awarenessPage))
}

// TrackSubmit records a credential submission. The request body is never
// read: submitted credentials must not reach storage or logs.
func (h *TrackingHandler) TrackSubmit(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	recorded, err := h.Targets.MarkSubmitted(token, time.Now().UTC())
	if err != nil {
		h.Logger.Error("failed to record submission", zap.String("token", token), zap.Error(err))
	} else if recorded {
		h.Logger.Info("credentials submitted", zap.String("token", token))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "This was a phishing simulation run by your organization's security team.",
		"warning": "Never enter your credentials on a page you reached from an unexpected email.",
		"tips": []string{
			"Check the sender's address carefully before trusting an email.",
			"Hover over links to inspect the destination before clicking.",
			"Report suspicious emails to your security team.",
		},
	})
}

const awarenessPage = `<!DOCTYPE html>
<html>
<head><title>Security Awareness Notice</title></head>
<body style="font-family: sans-serif; max-width: 600px; margin: 40px auto;">
  <h1>This was a phishing simulation</h1>
  <p>The link you just clicked was part of a security awareness exercise
  run by your organization. No harm was done, but a real attacker could
  have stolen your credentials or installed malware.</p>
  <ul>
    <li>Check the sender's address carefully before trusting an email.</li>
    <li>Hover over links to inspect the destination before clicking.</li>
    <li>Report suspicious emails to your security team.</li>
  </ul>
</body>
</html>`
