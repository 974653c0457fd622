package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snakeguard/snakeguard-go/internal/conf"
	"github.com/snakeguard/snakeguard-go/internal/httpclient"
)

func TestSMSSend(t *testing.T) {
	var gotUser, gotPass string
	var gotBody smsPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	provider := NewSMSProvider(conf.SMSConfig{
		Enabled:  true,
		URL:      srv.URL,
		Username: "acct",
		Password: "secret",
		From:     "SnakeGuard",
	}, httpclient.New(nil))

	err := provider.Send(context.Background(), "+61400000001", &Message{Body: "snake alert"})
	require.NoError(t, err)
	assert.Equal(t, "acct", gotUser)
	assert.Equal(t, "secret", gotPass)
	assert.Equal(t, "+61400000001", gotBody.To)
	assert.Equal(t, "SnakeGuard", gotBody.From)
	assert.Equal(t, "snake alert", gotBody.Message)
}

func TestSMSSendNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("carrier down"))
	}))
	t.Cleanup(srv.Close)

	provider := NewSMSProvider(conf.SMSConfig{Enabled: true, URL: srv.URL}, httpclient.New(nil))

	err := provider.Send(context.Background(), "+61400000001", &Message{Body: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "carrier down")
}

func TestSMSSendEmptyRecipient(t *testing.T) {
	provider := NewSMSProvider(conf.SMSConfig{Enabled: true, URL: "http://example.test"}, httpclient.New(nil))
	err := provider.Send(context.Background(), "  ", &Message{Body: "x"})
	require.Error(t, err)
}

func TestSMSValidateConfig(t *testing.T) {
	assert.NoError(t, NewSMSProvider(conf.SMSConfig{Enabled: false}, nil).ValidateConfig())
	assert.Error(t, NewSMSProvider(conf.SMSConfig{Enabled: true}, nil).ValidateConfig())
	assert.NoError(t, NewSMSProvider(conf.SMSConfig{Enabled: true, URL: "http://x"}, nil).ValidateConfig())
}
