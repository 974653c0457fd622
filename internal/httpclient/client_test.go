package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockedClient(t *testing.T) *Client {
	t.Helper()
	c := New(nil)
	httpmock.ActivateNonDefault(c.client)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestGetInjectsUserAgent(t *testing.T) {
	c := newMockedClient(t)

	var gotUA string
	httpmock.RegisterResponder(http.MethodGet, "http://example.test/ping",
		func(req *http.Request) (*http.Response, error) {
			gotUA = req.Header.Get("User-Agent")
			return httpmock.NewStringResponse(http.StatusOK, "pong"), nil
		})

	resp, err := c.Get(context.Background(), "http://example.test/ping")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "SnakeGuard-Go", gotUA)
}

func TestPostMarshalsJSONBody(t *testing.T) {
	c := newMockedClient(t)

	type payload struct {
		Name string `json:"name"`
	}

	var gotContentType string
	var gotBody payload
	httpmock.RegisterResponder(http.MethodPost, "http://example.test/submit",
		func(req *http.Request) (*http.Response, error) {
			gotContentType = req.Header.Get("Content-Type")
			body, _ := io.ReadAll(req.Body)
			_ = json.Unmarshal(body, &gotBody)
			return httpmock.NewStringResponse(http.StatusCreated, "ok"), nil
		})

	resp, err := c.Post(context.Background(), "http://example.test/submit", "", payload{Name: "sg"})
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "sg", gotBody.Name)
}

func TestPostStringBody(t *testing.T) {
	c := newMockedClient(t)

	var gotBody string
	httpmock.RegisterResponder(http.MethodPost, "http://example.test/raw",
		func(req *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(req.Body)
			gotBody = string(body)
			return httpmock.NewStringResponse(http.StatusOK, "ok"), nil
		})

	resp, err := c.Post(context.Background(), "http://example.test/raw", "text/plain", "hello")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "hello", gotBody)
}

func TestFetchBytesEnforcesCap(t *testing.T) {
	c := newMockedClient(t)

	httpmock.RegisterResponder(http.MethodGet, "http://example.test/big",
		httpmock.NewStringResponder(http.StatusOK, strings.Repeat("x", 1000)))

	data, _, err := c.FetchBytes(context.Background(), "http://example.test/big", 100)
	require.NoError(t, err)
	assert.Len(t, data, 100)
}

func TestFetchBytesNon2xx(t *testing.T) {
	c := newMockedClient(t)

	httpmock.RegisterResponder(http.MethodGet, "http://example.test/missing",
		httpmock.NewStringResponder(http.StatusNotFound, "nope"))

	_, _, err := c.FetchBytes(context.Background(), "http://example.test/missing", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
