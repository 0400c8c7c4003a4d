// internal/service/renderer.go
package service

import (
	"fmt"
	"strings"

	"github.com/lurehook/lurehook-backend/internal/model"
)

// Renderer personalizes template subjects and bodies for one target.
// Rendering happens exactly once per task lineage, before the first
// enqueue; retries reuse the rendered body carried in the broker message.
type Renderer struct {
	// TrackingBaseURL is the public base URL of the tracking endpoints,
	// e.g. "https://phish.example.com".
	TrackingBaseURL string
}

// PhishingURL is the click-tracking link prefix embedded into campaigns;
// the target's token is appended to it.
func (r *Renderer) PhishingURL() string {
	return r.TrackingBaseURL + "/track/click/"
}

// RenderTemplate substitutes {{placeholder}} keys in the template.
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		result = strings.ReplaceAll(result, "{{"+k+"}}", v)
	}
	return result
}

func (r *Renderer) placeholderData(rec *model.Recipient, token string) map[string]string {
	return map[string]string{
		"recipient_name":  rec.FullName(),
		"recipient_email": rec.Email,
		"first_name":      rec.FirstName,
		"last_name":       rec.LastName,
		"tracking_token":  token,
		"tracking_url":    r.TrackingBaseURL,
		"phishing_url":    r.PhishingURL() + token,
	}
}

// PersonalizeSubject renders the subject line. No pixel injection.
func (r *Renderer) PersonalizeSubject(subject string, rec *model.Recipient, token string) string {
	return RenderTemplate(subject, r.placeholderData(rec, token))
}

// PersonalizeBody renders the HTML body and injects the open-tracking
// pixel before the closing body tag, or appends it when the template has
// none.
func (r *Renderer) PersonalizeBody(bodyHTML string, rec *model.Recipient, token string) string {
	rendered := RenderTemplate(bodyHTML, r.placeholderData(rec, token))
	return r.injectTrackingPixel(rendered, token)
}

func (r *Renderer) injectTrackingPixel(html, token string) string {
	pixel := fmt.Sprintf(
		`<img src="%s/track/open/%s" width="1" height="1" style="display:none;" alt="">`,
		r.TrackingBaseURL, token,
	)
	if strings.Contains(html, "</body>") {
		return strings.Replace(html, "</body>", pixel+"</body>", 1)
	}
	return html + pixel
}
