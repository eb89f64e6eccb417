package notify

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/aethra/krishi/internal/config"
	apperrors "github.com/aethra/krishi/internal/errors"
	"github.com/aethra/krishi/internal/usage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

func TestTwilio_SendSMS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "token", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+919876543210", r.PostForm.Get("To"))
		assert.Equal(t, "+15005550006", r.PostForm.Get("From"))
		assert.Equal(t, "Heavy rain tomorrow", r.PostForm.Get("Body"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	}))
	defer srv.Close()

	sms := NewTwilio(config.SMSConfig{
		AccountSID: "AC123",
		AuthToken:  "token",
		FromNumber: "+15005550006",
		BaseURL:    srv.URL,
		Timeout:    5 * time.Second,
	}, usage.Nop{}, zap.NewNop())

	require.NoError(t, sms.SendSMS(context.Background(), "+919876543210", "Heavy rain tomorrow"))
}

func TestTwilio_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
	}))
	defer srv.Close()

	cfg := config.SMSConfig{AccountSID: "AC1", AuthToken: "t", FromNumber: "+1", BaseURL: srv.URL, Timeout: time.Second}
	err := NewTwilio(cfg, usage.Nop{}, zap.NewNop()).SendSMS(context.Background(), "123", "x")
	var upstream *apperrors.UpstreamError
	assert.ErrorAs(t, err, &upstream)

	err = NewTwilio(config.SMSConfig{}, usage.Nop{}, zap.NewNop()).SendSMS(context.Background(), "123", "x")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "*********3210", maskPhone("+919876543210"))
	assert.Equal(t, "****", maskPhone("12"))
}

func TestMailer_SendEmail(t *testing.T) {
	mailer := NewMailer(config.SMTPConfig{Host: "localhost", Port: 25, From: "alerts@krishi.local"}, usage.Nop{}, zap.NewNop())

	var sent bytes.Buffer
	mailer.send = func(msgs ...*gomail.Message) error {
		for _, m := range msgs {
			if _, err := m.WriteTo(&sent); err != nil {
				return err
			}
		}
		return nil
	}

	require.NoError(t, mailer.SendEmail(context.Background(), "farmer@example.com", "Frost risk", "Cover seedlings tonight"))
	assert.Contains(t, sent.String(), "To: farmer@example.com")
	assert.Contains(t, sent.String(), "Subject: Frost risk")
	assert.Contains(t, sent.String(), "Cover seedlings tonight")

	mailer.send = func(...*gomail.Message) error { return errors.New("dial tcp: connection refused") }
	err := mailer.SendEmail(context.Background(), "farmer@example.com", "Frost risk", "x")
	var upstream *apperrors.UpstreamError
	assert.ErrorAs(t, err, &upstream)
}

func TestTwilio_LongBodyCutOnCharacterBoundary(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r.PostForm.Get("Body")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM2","status":"queued"}`))
	}))
	defer srv.Close()

	cfg := config.SMSConfig{AccountSID: "AC1", AuthToken: "t", FromNumber: "+1", BaseURL: srv.URL, Timeout: time.Second}
	body := strings.Repeat("മഴ", maxSMSLength)
	require.NoError(t, NewTwilio(cfg, usage.Nop{}, zap.NewNop()).SendSMS(context.Background(), "+919876543210", body))

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, maxSMSLength, utf8.RuneCountInString(got))
}
