package channels

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/momtazchem/go-verify-backend/internal/config"
	"github.com/momtazchem/go-verify-backend/internal/domain"
)

// EmailAdapter delivers transactional mail through an HTTP mail API
// (Resend-compatible payload shape). The outgoing account is chosen per
// message purpose so OTP mail, delivery notices, and payment reminders each
// carry their own sender identity.
type EmailAdapter struct {
	cfg    config.EmailConfig
	client *http.Client
}

func NewEmailAdapter(cfg config.EmailConfig, client *http.Client) *EmailAdapter {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &EmailAdapter{cfg: cfg, client: client}
}

func (a *EmailAdapter) Name() string  { return domain.ChannelEmail }
func (a *EmailAdapter) Enabled() bool { return a.cfg.Enabled }

// AccountFor resolves the outgoing account for a purpose key, falling back
// to the "notification" account.
func (a *EmailAdapter) AccountFor(purpose string) (config.EmailAccount, error) {
	if acct, ok := a.cfg.Accounts[purpose]; ok {
		return acct, nil
	}
	if acct, ok := a.cfg.Accounts["notification"]; ok {
		return acct, nil
	}
	return config.EmailAccount{}, fmt.Errorf("no email account for purpose %q", purpose)
}

func (a *EmailAdapter) Send(ctx context.Context, msg Message) Outcome {
	if !a.cfg.Enabled {
		return failure("email channel disabled")
	}
	if strings.TrimSpace(msg.To) == "" {
		return failure("empty recipient")
	}
	acct, err := a.AccountFor(msg.Purpose)
	if err != nil {
		return failure("email: %v", err)
	}

	from := acct.FromEmail
	if acct.FromName != "" {
		from = fmt.Sprintf("%s <%s>", acct.FromName, acct.FromEmail)
	}
	payload := map[string]any{
		"from":    from,
		"to":      []string{msg.To},
		"subject": msg.Subject,
		"text":    msg.Body,
	}
	if msg.HTML != "" {
		payload["html"] = msg.HTML
	}
	if msg.TemplateID != "" {
		payload["template_id"] = msg.TemplateID
		if len(msg.Variables) > 0 {
			payload["variables"] = msg.Variables
		}
	}

	var resp struct {
		ID    string `json:"id"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	status, err := postJSON(ctx, a.client, a.cfg.Endpoint,
		map[string]string{"Authorization": "Bearer " + a.cfg.APIKey}, payload, &resp)
	if err != nil {
		return failure("email: %v", err)
	}
	if status < 200 || status > 299 {
		if resp.Error.Message != "" {
			return failure("email: HTTP %d: %s", status, resp.Error.Message)
		}
		return failure("email: HTTP %d", status)
	}
	return Outcome{Success: true, MessageID: resp.ID}
}
