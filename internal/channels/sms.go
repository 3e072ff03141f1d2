package channels

import (
	"context"
	"net/http"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/momtazchem/go-verify-backend/internal/config"
	"github.com/momtazchem/go-verify-backend/internal/domain"
)

const infobipDefaultEndpoint = "https://api.infobip.com"

// SMSAdapter routes text messages through the configured SMS provider:
// Twilio, Infobip, or a custom JSON gateway.
type SMSAdapter struct {
	cfg    config.SMSConfig
	client *http.Client
	twilio *twilio.RestClient
}

// NewSMSAdapter builds the adapter for cfg. The http.Client is used by the
// Infobip and custom providers; Twilio ships its own transport, bounded by
// the same configured timeout.
func NewSMSAdapter(cfg config.SMSConfig, client *http.Client) *SMSAdapter {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	a := &SMSAdapter{cfg: cfg, client: client}
	if cfg.Provider == "twilio" {
		a.twilio = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
		if cfg.Timeout > 0 {
			a.twilio.Client.SetTimeout(cfg.Timeout)
		}
	}
	return a
}

func (a *SMSAdapter) Name() string  { return domain.ChannelSMS }
func (a *SMSAdapter) Enabled() bool { return a.cfg.Enabled }

func (a *SMSAdapter) Send(ctx context.Context, msg Message) Outcome {
	if !a.cfg.Enabled {
		return failure("sms channel disabled")
	}
	if strings.TrimSpace(msg.To) == "" {
		return failure("empty recipient")
	}
	switch a.cfg.Provider {
	case "twilio":
		return a.sendTwilio(msg)
	case "infobip":
		return a.sendInfobip(ctx, msg)
	case "custom":
		return a.sendCustom(ctx, msg)
	default:
		return failure("unknown sms provider %q", a.cfg.Provider)
	}
}

func (a *SMSAdapter) sendTwilio(msg Message) Outcome {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(msg.To)
	params.SetFrom(a.cfg.SenderNumber)
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

type infobipResponse struct {
	Messages []struct {
		MessageID string `json:"messageId"`
		Status    struct {
			GroupID     int    `json:"groupId"`
			Description string `json:"description"`
		} `json:"status"`
	} `json:"messages"`
	RequestError struct {
		ServiceException struct {
			Text string `json:"text"`
		} `json:"serviceException"`
	} `json:"requestError"`
}

func (a *SMSAdapter) sendInfobip(ctx context.Context, msg Message) Outcome {
	base := a.cfg.Endpoint
	if base == "" {
		base = infobipDefaultEndpoint
	}
	payload := map[string]any{
		"messages": []map[string]any{{
			"destinations": []map[string]string{{"to": msg.To}},
			"from":         a.cfg.SenderNumber,
			"text":         msg.Body,
		}},
	}
	var resp infobipResponse
	status, err := postJSON(ctx, a.client, strings.TrimRight(base, "/")+"/sms/2/text/advanced",
		map[string]string{"Authorization": "App " + a.cfg.APIKey}, payload, &resp)
	if err != nil {
		return failure("infobip: %v", err)
	}
	if status != http.StatusOK || len(resp.Messages) == 0 {
		return failure("infobip: HTTP %d: %s", status, resp.RequestError.ServiceException.Text)
	}
	// Group 1 is PENDING, anything else was rejected outright.
	m := resp.Messages[0]
	if m.Status.GroupID != 1 {
		return failure("infobip: %s", m.Status.Description)
	}
	return Outcome{Success: true, MessageID: m.MessageID}
}

func (a *SMSAdapter) sendCustom(ctx context.Context, msg Message) Outcome {
	payload := map[string]string{
		"to":   msg.To,
		"from": a.cfg.SenderNumber,
		"text": msg.Body,
	}
	var resp struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	}
	status, err := postJSON(ctx, a.client, a.cfg.Endpoint,
		map[string]string{"X-API-Key": a.cfg.APIKey}, payload, &resp)
	if err != nil {
		return failure("sms gateway: %v", err)
	}
	if status < 200 || status > 299 {
		if resp.Error != "" {
			return failure("sms gateway: HTTP %d: %s", status, resp.Error)
		}
		return failure("sms gateway: HTTP %d", status)
	}
	return Outcome{Success: true, MessageID: resp.MessageID}
}
