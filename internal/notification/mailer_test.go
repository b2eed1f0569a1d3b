package notification

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMailerValidates(t *testing.T) {
	_, err := NewMailer(Config{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewMailer(Config{Provider: ProviderSMTP, From: "a@x.org", To: []string{"b@x.org"}})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewMailer(Config{Provider: ProviderSendGrid, From: "a@x.org", To: []string{"b@x.org"}})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewMailer(Config{Provider: "pigeon", From: "a@x.org", To: []string{"b@x.org"}})
	assert.ErrorContains(t, err, "unknown email provider")

	m, err := NewMailer(Config{Provider: ProviderSMTP, From: "a@x.org", To: []string{"b@x.org"}, Host: "localhost", Port: 25})
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestMessage(t *testing.T) {
	m := &Mailer{cfg: Config{From: "alerts@x.org", FromName: "avoidedcost", To: []string{"a@x.org", "b@x.org"}}}
	msg := string(m.message("job failed", "details"))
	assert.True(t, strings.HasPrefix(msg, "From: avoidedcost <alerts@x.org>\r\n"))
	assert.Contains(t, msg, "To: a@x.org, b@x.org\r\n")
	assert.Contains(t, msg, "Subject: job failed\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\ndetails\r\n"))
}

func TestSendGrid(t *testing.T) {
	var path, authz string
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		authz = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	m, err := NewMailer(Config{
		Provider: ProviderSendGrid, APIKey: "key", SendGridHost: srv.URL,
		From: "alerts@x.org", To: []string{"ops@x.org"},
	})
	require.NoError(t, err)
	require.NoError(t, m.Send(context.Background(), "recompute failed", "db down"))

	assert.Equal(t, "/v3/mail/send", path)
	assert.Equal(t, "Bearer key", authz)
	assert.Equal(t, "recompute failed", body["subject"])
}

func TestSendGridErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	m, err := NewMailer(Config{
		Provider: ProviderSendGrid, APIKey: "bad", SendGridHost: srv.URL,
		From: "alerts@x.org", To: []string{"ops@x.org"},
	})
	require.NoError(t, err)
	assert.ErrorContains(t, m.Send(context.Background(), "s", "b"), "401")
}
