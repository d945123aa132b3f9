package mailer

import (
	"complywatch/internal/models"
	"complywatch/internal/providers"
	"complywatch/internal/services"
	"complywatch/internal/structures"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"golang.org/x/time/rate"
)

const (
	defaultRatePerMinute = 60
	maxSendAttempts      = 3
)

type sendFunc func(addr string, a sasl.Client, from string, to []string, msg string) error

// SMTPMailer delivers plain-text mail through an SMTP relay. Sends are paced
// by a token bucket so a large digest run stays under the relay's limits.
type SMTPMailer struct {
	addr    string
	from    string
	auth    sasl.Client
	limiter *rate.Limiter
	send    sendFunc
	retry   func() backoff.BackOff
	logger  providers.Logger
}

func (m *SMTPMailer) Send(ctx context.Context, msg models.MailMessage) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("mail rate limit: %w", err)
	}

	body := compose(m.from, msg, time.Now())
	op := func() error {
		return m.send(m.addr, m.auth, m.from, []string{msg.To}, body)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(m.retry(), maxSendAttempts-1), ctx)
	notify := func(err error, wait time.Duration) {
		m.logger.Warnf(providers.TypeApp, "SMTP send to %s failed, retrying in %s: %s", msg.To, wait, err)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

func smtpSend(addr string, a sasl.Client, from string, to []string, msg string) error {
	return smtp.SendMail(addr, a, from, to, strings.NewReader(msg))
}

func compose(from string, msg models.MailMessage, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	return b.String()
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger providers.Logger
}

func (m *LogMailer) Send(_ context.Context, msg models.MailMessage) error {
	m.logger.Infof(providers.TypeDigest, "Mail to %s: %s\n%s", msg.To, msg.Subject, msg.Body)
	return nil
}

func NewMailer(conf *structures.Config, logger providers.Logger) services.MailerInterface {
	if conf.Mail.Driver != "smtp" {
		return &LogMailer{logger: logger}
	}

	perMinute := conf.Mail.RatePerMinute
	if perMinute <= 0 {
		perMinute = defaultRatePerMinute
	}

	var auth sasl.Client
	if conf.Mail.Username != "" {
		auth = sasl.NewPlainClient("", conf.Mail.Username, conf.Mail.Password)
	}

	logger.Infof(providers.TypeApp, "SMTP mailer via %s:%d, %d messages/min", conf.Mail.Host, conf.Mail.Port, perMinute)
	return &SMTPMailer{
		addr:    net.JoinHostPort(conf.Mail.Host, strconv.Itoa(conf.Mail.Port)),
		from:    conf.Mail.From,
		auth:    auth,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		send:    smtpSend,
		retry:   func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		logger:  logger,
	}
}
