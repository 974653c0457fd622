package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/snakeguard/snakeguard-go/internal/conf"
)

// EmailProvider sends via SMTP submission using shoutrrr's smtp
// service. A sender is built per dispatch because the recipient is part
// of the service URL.
type EmailProvider struct {
	cfg conf.EmailConfig
}

// NewEmailProvider returns the SMTP-backed email channel.
func NewEmailProvider(cfg conf.EmailConfig) *EmailProvider {
	return &EmailProvider{cfg: cfg}
}

func (e *EmailProvider) GetName() string { return "email" }
func (e *EmailProvider) IsEnabled() bool { return e.cfg.Enabled }

func (e *EmailProvider) ValidateConfig() error {
	if !e.cfg.Enabled {
		return nil
	}
	if e.cfg.Host == "" {
		return fmt.Errorf("smtp host is required")
	}
	if e.cfg.From == "" {
		return fmt.Errorf("sender address is required")
	}
	return nil
}

// Send submits one message to a single recipient over SMTP.
func (e *EmailProvider) Send(ctx context.Context, to string, msg *Message) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("empty recipient address")
	}

	sender, err := shoutrrr.CreateSender(e.serviceURL(to))
	if err != nil {
		return fmt.Errorf("creating smtp sender: %w", err)
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 {
			sender.Timeout = remaining
		}
	}

	params := stypes.Params{}
	if msg.Title != "" {
		params.SetTitle(msg.Title)
	}
	for _, sendErr := range sender.Send(msg.Body, &params) {
		if sendErr != nil {
			return fmt.Errorf("smtp send to %s: %w", to, sendErr)
		}
	}
	return nil
}

// serviceURL builds the shoutrrr smtp URL for one recipient.
func (e *EmailProvider) serviceURL(to string) string {
	var userinfo string
	if e.cfg.Username != "" {
		userinfo = url.QueryEscape(e.cfg.Username) + ":" + url.QueryEscape(e.cfg.Password) + "@"
	}
	q := url.Values{}
	q.Set("from", e.cfg.From)
	q.Set("to", to)
	if e.cfg.UseTLS {
		q.Set("usestarttls", "yes")
	} else {
		q.Set("usestarttls", "no")
	}
	return fmt.Sprintf("smtp://%s%s:%d/?%s", userinfo, e.cfg.Host, e.cfg.Port, q.Encode())
}
