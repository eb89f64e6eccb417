package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aethra/krishi/internal/config"
	"github.com/aethra/krishi/internal/models"
	"github.com/aethra/krishi/internal/resilience"
	"github.com/aethra/krishi/internal/usage"
	"go.uber.org/zap"
)

const twilioProvider = "twilio"

// maxSMSLength keeps a message within ten concatenated segments
const maxSMSLength = 1530

// Twilio sends SMS through the Twilio Messages REST API
type Twilio struct {
	cfg      config.SMSConfig
	http     *http.Client
	policy   *resilience.Policy
	recorder usage.Recorder
	log      *zap.Logger
}

// NewTwilio creates the Twilio sender
func NewTwilio(cfg config.SMSConfig, recorder usage.Recorder, log *zap.Logger) *Twilio {
	return &Twilio{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		policy: resilience.NewPolicy(resilience.Settings{
			Name:    twilioProvider,
			Timeout: cfg.Timeout,
		}, log),
		recorder: recorder,
		log:      log.Named("twilio"),
	}
}

type twilioMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

func (t *Twilio) SendSMS(ctx context.Context, to, body string) error {
	if !t.cfg.Enabled() {
		return ErrDisabled
	}
	body = models.Truncate(body, maxSMSLength)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", t.cfg.BaseURL, t.cfg.AccountSID)
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.cfg.FromNumber)
	form.Set("Body", body)

	started := time.Now()
	var msg twilioMessage
	err := t.policy.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return resilience.Permanent(err)
		}
		req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := t.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}
		if err := resilience.CheckStatus(resp.StatusCode, string(raw)); err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			return resilience.Permanent(fmt.Errorf("%w: %v", resilience.ErrMalformed, err))
		}
		return nil
	})

	t.recorder.Record(ctx, usage.Call{
		API:      models.APITwilio,
		Endpoint: "Messages.json",
		Request:  map[string]interface{}{"to": maskPhone(to), "length": len(body)},
		Started:  started,
		Err:      err,
	})
	if err != nil {
		t.log.Warn("sms failed", zap.String("to", maskPhone(to)), zap.Error(err))
		return resilience.Classify(twilioProvider, err)
	}

	t.log.Debug("sms sent", zap.String("sid", msg.SID), zap.String("status", msg.Status))
	return nil
}

// maskPhone keeps the last four digits of a number
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
