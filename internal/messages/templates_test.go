package messages

import (
	"strings"
	"testing"

	"golang.org/x/text/language"
)

func TestMatchLanguage(t *testing.T) {
	cases := []struct {
		pref string
		want language.Tag
	}{
		{"", language.Persian},
		{"fa", language.Persian},
		{"fa-IR", language.Persian},
		{"en", language.English},
		{"en-US", language.English},
		{"ar", language.Arabic},
		{"de", language.Persian}, // unsupported falls back
		{"not a tag", language.Persian},
	}
	for _, c := range cases {
		if got := MatchLanguage(c.pref); got != c.want {
			t.Errorf("MatchLanguage(%q) = %v, want %v", c.pref, got, c.want)
		}
	}
}

func TestSubstitute_BothPlaceholderStyles(t *testing.T) {
	vars := map[string]string{"code": "1234", "minutes": "5"}
	got := Substitute("code {{code}} code {code} left {{unknown}}", vars)
	want := "code 1234 code 1234 left {{unknown}}"
	if got != want {
		t.Fatalf("Substitute = %q, want %q", got, want)
	}
}

func TestSMS_OTPCopy(t *testing.T) {
	vars := map[string]string{"code": "4821", "minutes": "5"}

	fa, err := SMS(KindRegistrationOTP, language.Persian, vars)
	if err != nil {
		t.Fatalf("fa: %v", err)
	}
	if !strings.Contains(fa, "4821") || !strings.Contains(fa, "کد تایید") {
		t.Fatalf("persian copy missing pieces: %q", fa)
	}

	en, err := SMS(KindRegistrationOTP, language.English, vars)
	if err != nil {
		t.Fatalf("en: %v", err)
	}
	if !strings.Contains(en, "Your verification code: 4821") {
		t.Fatalf("english copy missing code: %q", en)
	}
	if !strings.Contains(en, "5 minutes") {
		t.Fatalf("expiry window not substituted: %q", en)
	}
}

func TestSMS_UnknownKind(t *testing.T) {
	if _, err := SMS(Kind("carrier_pigeon"), language.English, nil); err == nil {
		t.Fatal("unknown kind accepted")
	}
}

func TestEmail_PaymentReminder(t *testing.T) {
	vars := map[string]string{
		"customerName": "Ali",
		"orderNumber":  "M2501001",
		"amount":       "250000",
		"currency":     "IQD",
		"deadline":     "2025-03-10",
	}
	subj, body, err := Email(KindPaymentReminder, language.English, vars)
	if err != nil {
		t.Fatalf("Email: %v", err)
	}
	if !strings.Contains(subj, "M2501001") {
		t.Fatalf("subject missing order number: %q", subj)
	}
	for _, frag := range []string{"Ali", "250000", "IQD", "2025-03-10"} {
		if !strings.Contains(body, frag) {
			t.Fatalf("body missing %q: %q", frag, body)
		}
	}
}

func TestEmail_NoBodyForDeliveryKind(t *testing.T) {
	// Delivery codes travel over SMS and WhatsApp only.
	if _, _, err := Email(KindDeliveryCode, language.Persian, nil); err == nil {
		t.Fatal("expected missing email copy error")
	}
}

func TestOTPEmailHTML(t *testing.T) {
	html := OTPEmailHTML("9034", 5)
	if !strings.Contains(html, "9034") {
		t.Fatalf("code missing from html: %q", html)
	}
	if !strings.Contains(html, "5 دقیقه") || !strings.Contains(html, "5 minutes") {
		t.Fatalf("expiry copy missing: %q", html)
	}
}
