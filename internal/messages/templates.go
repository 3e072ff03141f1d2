// Package messages holds the localized copy for every outbound notification
// and the tiny template engine that fills it in. Persian is the house
// language and the fallback; English is carried alongside for the export
// customer base.
package messages

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Kind names one outbound message family. Each kind carries copy for every
// channel it can travel on.
type Kind string

const (
	KindRegistrationOTP Kind = "registration_otp"
	KindDeliveryCode    Kind = "delivery_code"
	KindPaymentReminder Kind = "payment_reminder"
)

var supported = []language.Tag{
	language.Persian, // fallback
	language.English,
	language.Arabic,
}

var matcher = language.NewMatcher(supported)

// MatchLanguage resolves a BCP 47 tag (or bare "fa"/"en"/"ar") to one of the
// supported languages, falling back to Persian.
func MatchLanguage(pref string) language.Tag {
	if pref == "" {
		return language.Persian
	}
	tag, err := language.Parse(pref)
	if err != nil {
		return language.Persian
	}
	_, idx, _ := matcher.Match(tag)
	return supported[idx]
}

// Substitute fills {{name}} and {name} placeholders from vars. Unknown
// placeholders are left in place so a missing variable is visible in the
// output rather than silently blanked.
func Substitute(tmpl string, vars map[string]string) string {
	out := tmpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

type copySet struct {
	sms      map[language.Tag]string
	whatsapp map[language.Tag]string
	subject  map[language.Tag]string
	email    map[language.Tag]string
}

var catalog = map[Kind]copySet{
	KindRegistrationOTP: {
		sms: map[language.Tag]string{
			language.Persian: "کد تایید شما: {{code}}\nاین کد ظرف {{minutes}} دقیقه منقضی خواهد شد.",
			language.English: "Your verification code: {{code}}\nThis code expires in {{minutes}} minutes.",
			language.Arabic:  "رمز التحقق الخاص بك: {{code}}. هذا الرمز صالح لمدة {{minutes}} دقائق.",
		},
		whatsapp: map[language.Tag]string{
			language.Persian: "کد تایید: {{code}}\nظرف {{minutes}} دقیقه منقضی می‌شود.",
			language.English: "Verification code: {{code}}\nExpires in {{minutes}} min",
			language.Arabic:  "رمز التحقق: {{code}}. تنتهي صلاحيته خلال {{minutes}} دقائق.",
		},
		subject: map[language.Tag]string{
			language.Persian: "کد تایید ثبت نام - Registration Code: {{code}}",
			language.English: "Registration Code: {{code}}",
			language.Arabic:  "رمز تأكيد التسجيل: {{code}}",
		},
		email: map[language.Tag]string{
			language.Persian: "کد تایید شما برای تکمیل ثبت نام: {{code}}\nاین کد ظرف {{minutes}} دقیقه منقضی خواهد شد.\nبرای امنیت حساب خود، این کد را با کسی به اشتراک نگذارید.",
			language.English: "Your verification code to complete registration: {{code}}\nThis code expires in {{minutes}} minutes.\nFor your account security, do not share this code with anyone.",
			language.Arabic:  "رمز التحقق لإكمال التسجيل: {{code}}. هذا الرمز صالح لمدة {{minutes}} دقائق. لأمان حسابك، لا تشارك هذا الرمز مع أي شخص.",
		},
	},
	KindDeliveryCode: {
		sms: map[language.Tag]string{
			language.Persian: "{{customerName}} عزیز، کد تحویل سفارش {{orderNumber}} شما: {{code}}\nاین کد تا پایان امروز معتبر است.",
			language.English: "Dear {{customerName}}, your delivery code for order {{orderNumber}}: {{code}}\nValid until the end of today.",
			language.Arabic:  "عزيزي {{customerName}}، رمز تسليم طلبك {{orderNumber}}: {{code}}. صالح حتى نهاية اليوم.",
		},
		whatsapp: map[language.Tag]string{
			language.Persian: "کد تحویل: {{code}}\nسفارش: {{orderNumber}}",
			language.English: "Delivery code: {{code}}\nOrder: {{orderNumber}}",
			language.Arabic:  "رمز التسليم: {{code}}. الطلب: {{orderNumber}}",
		},
	},
	KindPaymentReminder: {
		subject: map[language.Tag]string{
			language.Persian: "یادآوری پرداخت سفارش {{orderNumber}} - شرکت ممتاز شیمی",
			language.English: "Payment Reminder for Order {{orderNumber}} - Momtaz Chemistry",
			language.Arabic:  "تذكير بدفع الطلب {{orderNumber}} - شركة ممتاز للكيماويات",
		},
		email: map[language.Tag]string{
			language.Persian: "{{customerName}} عزیز، مهلت پرداخت سفارش {{orderNumber}} به مبلغ {{amount}} {{currency}} در تاریخ {{deadline}} به پایان می‌رسد. لطفاً جهت جلوگیری از لغو سفارش، پرداخت را تکمیل کنید.",
			language.English: "Dear {{customerName}}, payment for order {{orderNumber}} ({{amount}} {{currency}}) is due by {{deadline}}. Please complete the payment to avoid cancellation.",
			language.Arabic:  "عزيزي {{customerName}}، يستحق دفع الطلب {{orderNumber}} ({{amount}} {{currency}}) بحلول {{deadline}}. يرجى إكمال الدفع لتجنب الإلغاء.",
		},
	},
}

func lookup(m map[language.Tag]string, lang language.Tag) (string, bool) {
	if m == nil {
		return "", false
	}
	if s, ok := m[lang]; ok {
		return s, true
	}
	s, ok := m[language.Persian]
	return s, ok
}

// SMS renders the SMS body for kind in lang.
func SMS(kind Kind, lang language.Tag, vars map[string]string) (string, error) {
	c, ok := catalog[kind]
	if !ok {
		return "", fmt.Errorf("messages: unknown kind %q", kind)
	}
	tmpl, ok := lookup(c.sms, lang)
	if !ok {
		return "", fmt.Errorf("messages: %q has no sms copy", kind)
	}
	return Substitute(tmpl, vars), nil
}

// WhatsApp renders the WhatsApp body for kind in lang. WhatsApp copy is
// shorter than SMS where the original campaigns trimmed it.
func WhatsApp(kind Kind, lang language.Tag, vars map[string]string) (string, error) {
	c, ok := catalog[kind]
	if !ok {
		return "", fmt.Errorf("messages: unknown kind %q", kind)
	}
	tmpl, ok := lookup(c.whatsapp, lang)
	if !ok {
		return "", fmt.Errorf("messages: %q has no whatsapp copy", kind)
	}
	return Substitute(tmpl, vars), nil
}

// Email renders the subject and plain-text body for kind in lang.
func Email(kind Kind, lang language.Tag, vars map[string]string) (subject, body string, err error) {
	c, ok := catalog[kind]
	if !ok {
		return "", "", fmt.Errorf("messages: unknown kind %q", kind)
	}
	subjTmpl, ok := lookup(c.subject, lang)
	if !ok {
		return "", "", fmt.Errorf("messages: %q has no email subject", kind)
	}
	bodyTmpl, ok := lookup(c.email, lang)
	if !ok {
		return "", "", fmt.Errorf("messages: %q has no email body", kind)
	}
	return Substitute(subjTmpl, vars), Substitute(bodyTmpl, vars), nil
}

// OTPEmailHTML wraps the registration code in the branded HTML email shell.
func OTPEmailHTML(code string, minutes int) string {
	var b strings.Builder
	b.WriteString(`<div style="font-family:Tahoma,Arial,sans-serif;max-width:560px;margin:0 auto">`)
	b.WriteString(`<h2 style="color:#2563eb">کد تایید ثبت نام / Registration Code</h2>`)
	b.WriteString(`<p>کد تایید شما برای تکمیل ثبت نام:</p>`)
	b.WriteString(`<p>Your verification code to complete registration:</p>`)
	b.WriteString(`<div style="background:#eff6ff;border:2px solid #2563eb;border-radius:8px;padding:20px;text-align:center;margin:20px 0">`)
	b.WriteString(fmt.Sprintf(`<span style="font-size:32px;letter-spacing:8px;font-weight:bold">%s</span>`, code))
	b.WriteString(`</div>`)
	b.WriteString(fmt.Sprintf(`<p>این کد ظرف <strong>%d دقیقه</strong> منقضی خواهد شد.<br>This code expires in <strong>%d minutes</strong>.</p>`, minutes, minutes))
	b.WriteString(`<p>🔒 برای امنیت حساب خود، این کد را با کسی به اشتراک نگذارید.<br>🔒 For your account security, do not share this code with anyone.</p>`)
	b.WriteString(`</div>`)
	return b.String()
}
