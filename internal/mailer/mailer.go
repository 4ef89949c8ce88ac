// Package mailer sends the quote review link to clients.
package mailer

import (
	"bytes"
	"context"
	"embed"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/estmator/estmator/config"
	"github.com/estmator/estmator/internal/domain"
	"github.com/estmator/estmator/internal/quoting"
	"github.com/estmator/estmator/internal/report"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Subject of the quote link mail
const Subject = "Your estmator quote!"

// PublicQuotePath is where the review link points, relative to the site base URL.
const PublicQuotePath = "/api/v1/public/quotes/"

//go:embed templates/*
var templateFS embed.FS

var (
	textTemplate = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/quote_link.txt"))
	htmlTemplate = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/quote_link.html"))
)

// Message is a rendered mail. HTML is optional.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, m *Message) error
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
}

func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)}
}

func (s *SMTPSender) Send(ctx context.Context, m *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	gm := gomail.NewMessage()
	gm.SetHeader("From", m.From)
	gm.SetHeader("To", m.To)
	gm.SetHeader("Subject", m.Subject)
	gm.SetBody("text/plain", m.Text)
	if m.HTML != "" {
		gm.AddAlternative("text/html", m.HTML)
	}
	return s.dialer.DialAndSend(gm)
}

// LogSender only logs messages. Used when mail is disabled.
type LogSender struct{}

func (LogSender) Send(_ context.Context, m *Message) error {
	zap.L().Info("mail disabled, message not sent",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.String("body", m.Text),
		zap.String("namespace", "mailer"))
	return nil
}

// NewSender picks the SMTP sender when mail is enabled.
func NewSender(cfg config.MailConfig) Sender {
	if !cfg.Enabled {
		return LogSender{}
	}
	return NewSMTPSender(cfg)
}

// QuoteMailer renders and sends quote links. It satisfies quoting.Notifier.
type QuoteMailer struct {
	sender  Sender
	from    string
	baseURL string
	useHTML bool
}

var _ quoting.Notifier = (*QuoteMailer)(nil)

func NewQuoteMailer(sender Sender, cfg config.MailConfig, baseURL string) *QuoteMailer {
	return &QuoteMailer{
		sender:  sender,
		from:    cfg.From,
		baseURL: strings.TrimRight(baseURL, "/"),
		useHTML: cfg.UseHTML,
	}
}

// Link returns the public review address of a quote token.
func (m *QuoteMailer) Link(token string) string {
	return m.baseURL + PublicQuotePath + token
}

type templateData struct {
	Client     *domain.Client
	Quote      *domain.Quote
	Operator   *domain.SysOpr
	PreparedBy string
	Site       string
	Token      string
	Link       string
	GrandTotal string
}

// Render builds the message for a priced quote.
func (m *QuoteMailer) Render(pq *quoting.PricedQuote) (*Message, error) {
	data := templateData{
		Client:     pq.Client,
		Quote:      pq.Quote,
		Operator:   pq.Operator,
		PreparedBy: preparedBy(pq.Operator),
		Site:       m.baseURL,
		Token:      pq.Quote.Token,
		Link:       m.Link(pq.Quote.Token),
		GrandTotal: report.Money(pq.Totals.GrandTotal),
	}

	var text bytes.Buffer
	if err := textTemplate.Execute(&text, data); err != nil {
		return nil, errors.Wrap(err, "render text body")
	}
	msg := &Message{
		From:    m.from,
		To:      pq.Client.Email,
		Subject: Subject,
		Text:    text.String(),
	}
	if m.useHTML {
		var html bytes.Buffer
		if err := htmlTemplate.Execute(&html, data); err != nil {
			return nil, errors.Wrap(err, "render html body")
		}
		msg.HTML = html.String()
	}
	return msg, nil
}

func preparedBy(opr *domain.SysOpr) string {
	switch {
	case opr == nil:
		return "Our team"
	case opr.Realname != "":
		return opr.Realname
	default:
		return opr.Username
	}
}

// NotifyQuote mails the review link to the quote's client.
func (m *QuoteMailer) NotifyQuote(ctx context.Context, pq *quoting.PricedQuote) (string, error) {
	msg, err := m.Render(pq)
	if err != nil {
		return "", err
	}
	if err := m.sender.Send(ctx, msg); err != nil {
		return "", errors.Wrapf(err, "send quote %d to %s", pq.Quote.ID, msg.To)
	}
	zap.L().Info("quote link sent",
		zap.Int64("quote_id", pq.Quote.ID),
		zap.String("to", msg.To),
		zap.String("namespace", "mailer"))
	return m.Link(pq.Quote.Token), nil
}
