package service_test

import (
	"strings"
	"testing"

	"github.com/lurehook/lurehook-backend/internal/model"
	"github.com/lurehook/lurehook-backend/internal/service"
)

func TestRenderTemplateSubstitutesPlaceholders(t *testing.T) {
	out := service.RenderTemplate("Hi {{first_name}} {{last_name}}, visit {{phishing_url}}", map[string]string{
		"first_name":   "Alice",
		"last_name":    "Mwangi",
		"phishing_url": "https://phish.test/track/click/tok123",
	})
	want := "Hi Alice Mwangi, visit https://phish.test/track/click/tok123"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestRenderTemplateLeavesUnknownPlaceholders(t *testing.T) {
	out := service.RenderTemplate("Hello {{unknown}}", map[string]string{"first_name": "Bob"})
	if out != "Hello {{unknown}}" {
		t.Fatalf("unknown placeholders must pass through, got %q", out)
	}
}

func TestPersonalizeBodyInjectsPixelBeforeBodyClose(t *testing.T) {
	r := &service.Renderer{TrackingBaseURL: "https://phish.test"}
	rec := &model.Recipient{Email: "alice@corp.test", FirstName: "Alice", LastName: "Mwangi"}

	out := r.PersonalizeBody("<html><body><p>Hi {{recipient_name}}</p></body></html>", rec, "tok123")

	if !strings.Contains(out, "Hi Alice Mwangi") {
		t.Errorf("expected personalized name in %q", out)
	}
	pixel := `<img src="https://phish.test/track/open/tok123"`
	idx := strings.Index(out, pixel)
	end := strings.Index(out, "</body>")
	if idx == -1 {
		t.Fatalf("expected tracking pixel in %q", out)
	}
	if end == -1 || idx > end {
		t.Errorf("pixel must be injected before </body>, got %q", out)
	}
}

func TestPersonalizeBodyAppendsPixelWithoutBodyTag(t *testing.T) {
	r := &service.Renderer{TrackingBaseURL: "https://phish.test"}
	rec := &model.Recipient{Email: "bob@corp.test", FirstName: "Bob"}

	out := r.PersonalizeBody("<p>Plain fragment</p>", rec, "tok456")
	if !strings.HasSuffix(out, `alt="">`) || !strings.Contains(out, "/track/open/tok456") {
		t.Errorf("pixel must be appended when there is no body tag, got %q", out)
	}
}

func TestPhishingURLCarriesToken(t *testing.T) {
	r := &service.Renderer{TrackingBaseURL: "https://phish.test"}
	rec := &model.Recipient{Email: "carol@corp.test", FirstName: "Carol"}

	out := r.PersonalizeBody(`<a href="{{phishing_url}}">click</a>`, rec, "tok789")
	if !strings.Contains(out, `href="https://phish.test/track/click/tok789"`) {
		t.Errorf("expected click-tracking link with token, got %q", out)
	}
}
