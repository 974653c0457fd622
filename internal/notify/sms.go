package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/snakeguard/snakeguard-go/internal/conf"
	"github.com/snakeguard/snakeguard-go/internal/httpclient"
)

// maxErrorBodySize limits error response body reading.
const maxErrorBodySize = 1024

// SMSProvider dispatches text messages through an HTTP messaging API
// using basic auth.
type SMSProvider struct {
	cfg    conf.SMSConfig
	client *httpclient.Client
}

// smsPayload is the JSON body posted to the carrier API.
type smsPayload struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Message string `json:"message"`
}

// NewSMSProvider returns the HTTP-backed SMS channel.
func NewSMSProvider(cfg conf.SMSConfig, client *httpclient.Client) *SMSProvider {
	return &SMSProvider{cfg: cfg, client: client}
}

func (s *SMSProvider) GetName() string { return "sms" }
func (s *SMSProvider) IsEnabled() bool { return s.cfg.Enabled }

func (s *SMSProvider) ValidateConfig() error {
	if !s.cfg.Enabled {
		return nil
	}
	if s.cfg.URL == "" {
		return fmt.Errorf("sms api url is required")
	}
	return nil
}

// Send posts one message to the carrier API. Non-2xx responses are
// errors with a bounded excerpt of the response body.
func (s *SMSProvider) Send(ctx context.Context, to string, msg *Message) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("empty recipient number")
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(smsPayload{To: to, From: s.cfg.From, Message: msg.Body})
	if err != nil {
		return fmt.Errorf("marshaling sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.Username != "" {
		req.SetBasicAuth(s.cfg.Username, s.cfg.Password)
	}

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("sms send to %s: %w", to, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return fmt.Errorf("sms api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}
	return nil
}
