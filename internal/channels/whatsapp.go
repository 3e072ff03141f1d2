package channels

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/momtazchem/go-verify-backend/internal/config"
	"github.com/momtazchem/go-verify-backend/internal/domain"
)

const (
	metaDefaultEndpoint     = "https://graph.facebook.com/v18.0"
	ultramsgDefaultEndpoint = "https://api.ultramsg.com"
)

// WhatsAppAdapter routes messages through Twilio's WhatsApp bridge, the Meta
// Cloud API, or UltraMsg.
type WhatsAppAdapter struct {
	cfg    config.WhatsAppConfig
	client *http.Client
	twilio *twilio.RestClient
}

func NewWhatsAppAdapter(cfg config.WhatsAppConfig, client *http.Client) *WhatsAppAdapter {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	a := &WhatsAppAdapter{cfg: cfg, client: client}
	if cfg.Provider == "twilio" {
		a.twilio = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
		if cfg.Timeout > 0 {
			// Twilio ships its own transport; bound it like the
			// plain HTTP providers.
			a.twilio.Client.SetTimeout(cfg.Timeout)
		}
	}
	return a
}

func (a *WhatsAppAdapter) Name() string  { return domain.ChannelWhatsApp }
func (a *WhatsAppAdapter) Enabled() bool { return a.cfg.Enabled }

func (a *WhatsAppAdapter) Send(ctx context.Context, msg Message) Outcome {
	if !a.cfg.Enabled {
		return failure("whatsapp channel disabled")
	}
	if strings.TrimSpace(msg.To) == "" {
		return failure("empty recipient")
	}
	switch a.cfg.Provider {
	case "twilio":
		return a.sendTwilio(msg)
	case "meta":
		return a.sendMeta(ctx, msg)
	case "ultramsg":
		return a.sendUltraMsg(ctx, msg)
	default:
		return failure("unknown whatsapp provider %q", a.cfg.Provider)
	}
}

func (a *WhatsAppAdapter) sendTwilio(msg Message) Outcome {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo("whatsapp:" + msg.To)
	from := a.cfg.FromNumber
	if !strings.HasPrefix(from, "whatsapp:") {
		from = "whatsapp:" + from
	}
	params.SetFrom(from)
	params.SetBody(msg.Body)

	resp, err := a.twilio.Api.CreateMessage(params)
	if err != nil {
		return failure("twilio: %v", err)
	}
	out := Outcome{Success: true}
	if resp.Sid != nil {
		out.MessageID = *resp.Sid
	}
	return out
}

func (a *WhatsAppAdapter) sendMeta(ctx context.Context, msg Message) Outcome {
	base := a.cfg.Endpoint
	if base == "" {
		base = metaDefaultEndpoint
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                strings.TrimPrefix(msg.To, "+"),
		"type":              "text",
		"text":              map[string]string{"body": msg.Body},
	}
	var resp struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	status, err := postJSON(ctx, a.client,
		strings.TrimRight(base, "/")+"/"+a.cfg.InstanceID+"/messages",
		map[string]string{"Authorization": "Bearer " + a.cfg.AccessToken}, payload, &resp)
	if err != nil {
		return failure("meta: %v", err)
	}
	if status != http.StatusOK || len(resp.Messages) == 0 {
		if resp.Error.Message != "" {
			return failure("meta: %s", resp.Error.Message)
		}
		return failure("meta: HTTP %d", status)
	}
	return Outcome{Success: true, MessageID: resp.Messages[0].ID}
}

func (a *WhatsAppAdapter) sendUltraMsg(ctx context.Context, msg Message) Outcome {
	base := a.cfg.Endpoint
	if base == "" {
		base = ultramsgDefaultEndpoint
	}
	form := url.Values{
		"token": {a.cfg.AccessToken},
		"to":    {strings.TrimPrefix(msg.To, "+")},
		"body":  {msg.Body},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(base, "/")+"/"+a.cfg.InstanceID+"/messages/chat",
		strings.NewReader(form.Encode()))
	if err != nil {
		return failure("ultramsg: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := a.client.Do(req)
	if err != nil {
		return failure("ultramsg: %v", err)
	}
	defer httpResp.Body.Close()

	// UltraMsg reports sent as a bare bool or the string "true" depending
	// on the endpoint version.
	var resp struct {
		Sent  any    `json:"sent"`
		ID    any    `json:"id"`
		Error any    `json:"error"`
		Msg   string `json:"message"`
	}
	if status, derr := decodeBody(httpResp, &resp); derr != nil {
		return failure("ultramsg: %v", derr)
	} else if status != http.StatusOK || !truthy(resp.Sent) {
		if resp.Error != nil {
			return failure("ultramsg: %v", resp.Error)
		}
		return failure("ultramsg: HTTP %d", status)
	}
	return Outcome{Success: true, MessageID: stringify(resp.ID)}
}
