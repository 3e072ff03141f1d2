// Package channels contains the outbound delivery adapters. Each adapter
// wraps one provider family (SMS gateway, WhatsApp API, transactional mail
// API) behind a uniform interface that reports an Outcome instead of
// returning an error: a failed send is a normal result the dispatcher
// records, not an exceptional condition that unwinds the fan-out.
package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Message is one rendered notification ready to leave the system.
type Message struct {
	// To is the channel-specific target: an E.164 phone number for SMS
	// and WhatsApp, an address for email.
	To      string
	Subject string
	Body    string
	HTML    string

	// Purpose selects the outgoing email account ("otp", "notification",
	// "reminder"). Ignored by phone channels.
	Purpose string

	// TemplateID, when set, asks the mail provider to render its stored
	// template with Variables instead of the inline subject/body.
	TemplateID string
	Variables  map[string]string
}

// Outcome is the settled result of one send attempt. Error is a human
// readable provider diagnostic, empty on success.
type Outcome struct {
	Success   bool
	MessageID string
	Error     string
}

func failure(format string, args ...any) Outcome {
	return Outcome{Error: fmt.Sprintf(format, args...)}
}

// Adapter sends messages over one channel. Send never panics and never
// returns a Go error; provider failures come back inside the Outcome.
type Adapter interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, msg Message) Outcome
}

const maxResponseBody = 1 << 20

// decodeBody drains an http.Response into out and returns the status code.
func decodeBody(resp *http.Response, out any) (int, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// truthy interprets a provider flag that may arrive as a bool, a number, or
// the strings "true"/"1".
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "1"
	case float64:
		return t != 0
	default:
		return false
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// postJSON issues a JSON POST and decodes the response body into out.
// Returns the HTTP status and a transport-or-decode error.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload, out any) (int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return decodeBody(resp, out)
}
