package notify

import (
	"context"
	"time"

	"github.com/aethra/krishi/internal/config"
	"github.com/aethra/krishi/internal/models"
	"github.com/aethra/krishi/internal/resilience"
	"github.com/aethra/krishi/internal/usage"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

const smtpProvider = "smtp"

// Mailer sends email over SMTP
type Mailer struct {
	from     string
	send     func(m ...*gomail.Message) error
	policy   *resilience.Policy
	recorder usage.Recorder
	log      *zap.Logger
}

// NewMailer creates the SMTP sender
func NewMailer(cfg config.SMTPConfig, recorder usage.Recorder, log *zap.Logger) *Mailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &Mailer{
		from: cfg.From,
		send: d.DialAndSend,
		policy: resilience.NewPolicy(resilience.Settings{
			Name:     smtpProvider,
			Timeout:  30 * time.Second,
			Attempts: 2,
		}, log),
		recorder: recorder,
		log:      log.Named("mailer"),
	}
}

func (m *Mailer) SendEmail(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	started := time.Now()
	err := m.policy.Do(ctx, func(ctx context.Context) error {
		return m.send(msg)
	})

	m.recorder.Record(ctx, usage.Call{
		API:      models.APISMTP,
		Endpoint: "sendmail",
		Request:  map[string]string{"subject": subject},
		Started:  started,
		Err:      err,
	})
	if err != nil {
		m.log.Warn("email failed", zap.String("subject", subject), zap.Error(err))
		return resilience.Classify(smtpProvider, err)
	}
	return nil
}
