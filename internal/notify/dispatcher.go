// Package notify renders and sends the transactional emails: the internal
// lead alert and the subscriber welcome email. Outside production nothing is
// transmitted; the dispatcher logs what it would have sent.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/osteele/liquid"

	"github.com/jbrand/leadintake/internal/config"
	"github.com/jbrand/leadintake/internal/domain"
	"github.com/jbrand/leadintake/internal/pkg/logger"
)

const (
	defaultTimeout = 10 * time.Second
	previewRunes   = 160

	modeDevelopment = "development"
	modeProduction  = "production"
)

// Options configures a Dispatcher.
type Options struct {
	Mode     config.Mode
	From     string
	FromName string
	// AlertTo receives lead alerts.
	AlertTo []string
	Timeout time.Duration
}

// Delivery is the outcome of one send.
type Delivery struct {
	Sent      bool   `json:"sent"`
	Mode      string `json:"mode"`
	MessageID string `json:"emailId,omitempty"`
}

// Dispatcher renders templates and hands messages to a Mailer.
type Dispatcher struct {
	opts    Options
	mailer  Mailer
	alert   *templateSet
	welcome *templateSet
	now     func() time.Time
}

// NewDispatcher parses the templates. mailer may be nil; in production every
// send then fails with a mail configuration error.
func NewDispatcher(opts Options, mailer Mailer) (*Dispatcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.FromName == "" {
		opts.FromName = "JBrand"
	}
	engine := liquid.NewEngine()
	alert, err := parseSet(engine, alertSubject, alertHTML, alertText)
	if err != nil {
		return nil, fmt.Errorf("alert template: %w", err)
	}
	welcome, err := parseSet(engine, welcomeSubject, welcomeHTML, welcomeText)
	if err != nil {
		return nil, fmt.Errorf("welcome template: %w", err)
	}
	return &Dispatcher{opts: opts, mailer: mailer, alert: alert, welcome: welcome, now: time.Now}, nil
}

// Status describes mail readiness for health checks.
func (d *Dispatcher) Status() string {
	switch {
	case !d.opts.Mode.IsProduction():
		return modeDevelopment
	case d.configErr() != nil:
		return "not_configured"
	default:
		return "configured"
	}
}

func (d *Dispatcher) configErr() error {
	switch {
	case d.mailer == nil:
		return domain.MailConfigurationError("mail credentials are not configured")
	case d.opts.From == "":
		return domain.MailConfigurationError("mail sender address is not configured")
	}
	return nil
}

// SendContactAlert notifies the team about a stored lead.
func (d *Dispatcher) SendContactAlert(ctx context.Context, c *domain.Contact) (*Delivery, error) {
	b := alertBindings(c.Name, c.Email, c.Message, string(c.Priority), c.LeadScore)
	setIf(b, "phone", c.Phone)
	setIf(b, "company", c.Company)
	setIf(b, "website", c.Website)
	setIf(b, "budget", c.Budget)
	setIf(b, "timeline", c.Timeline)
	setIf(b, "contact_id", c.ID)
	if c.Service != "" {
		b["services"] = []string{string(c.Service)}
	}
	if len(c.Tags) > 0 {
		b["tags"] = c.Tags
	}
	if !c.CreatedAt.IsZero() {
		b["submitted_at"] = c.CreatedAt.UTC().Format(time.RFC1123)
	}
	return d.sendAlert(ctx, "contact_alert", c.Email, b)
}

// SendInquiry notifies the team about an unpersisted project inquiry.
func (d *Dispatcher) SendInquiry(ctx context.Context, in domain.ContactInput, cls domain.Classification) (*Delivery, error) {
	b := alertBindings(in.Name, in.Email, in.Message, string(cls.Priority), cls.LeadScore)
	b["inquiry"] = true
	setIf(b, "phone", in.Phone)
	setIf(b, "company", in.Company)
	setIf(b, "website", in.Website)
	setIf(b, "budget", in.Budget)
	setIf(b, "timeline", in.Timeline)
	var services []string
	for _, s := range in.Services {
		services = append(services, string(s))
	}
	if len(services) == 0 && in.Service != "" {
		services = []string{string(in.Service)}
	}
	if len(services) > 0 {
		b["services"] = services
	}
	if len(cls.Tags) > 0 {
		b["tags"] = cls.Tags
	}
	b["submitted_at"] = d.now().UTC().Format(time.RFC1123)
	return d.sendAlert(ctx, "inquiry", in.Email, b)
}

// SendWelcomeEmail greets a new or reactivated subscriber. Subscribers who
// prefer text get no HTML part.
func (d *Dispatcher) SendWelcomeEmail(ctx context.Context, s *domain.Subscriber, reactivated bool) (*Delivery, error) {
	b := map[string]any{
		"brand":       d.opts.FromName,
		"email":       s.Email,
		"frequency":   string(s.Preferences.Frequency),
		"reactivated": reactivated,
	}
	if len(s.Preferences.Categories) > 0 {
		b["categories"] = s.Preferences.Categories
	}
	out, err := d.welcome.render(b)
	if err != nil {
		return nil, domain.MailSendError("notify.welcome", err)
	}
	msg := &domain.EmailMessage{
		To:          []string{s.Email},
		Subject:     out.subject,
		HTMLContent: out.html,
		TextContent: out.text,
		Tags:        map[string]string{"type": "welcome", "subscriber_id": s.ID},
	}
	if s.Preferences.Format == domain.FormatText {
		msg.HTMLContent = ""
	}
	return d.deliver(ctx, "welcome", msg)
}

func (d *Dispatcher) sendAlert(ctx context.Context, kind, replyTo string, b map[string]any) (*Delivery, error) {
	if d.opts.Mode.IsProduction() && len(d.opts.AlertTo) == 0 {
		return nil, domain.MailConfigurationError("alert recipient is not configured")
	}
	out, err := d.alert.render(b)
	if err != nil {
		return nil, domain.MailSendError("notify."+kind, err)
	}
	msg := &domain.EmailMessage{
		To:          d.opts.AlertTo,
		ReplyTo:     replyTo,
		Subject:     out.subject,
		HTMLContent: out.html,
		TextContent: out.text,
		Tags:        map[string]string{"type": kind},
	}
	if id, ok := b["contact_id"].(string); ok {
		msg.Tags["contact_id"] = id
	}
	return d.deliver(ctx, kind, msg)
}

func (d *Dispatcher) deliver(ctx context.Context, kind string, msg *domain.EmailMessage) (*Delivery, error) {
	msg.FromEmail = d.opts.From
	msg.FromName = d.opts.FromName

	if !d.opts.Mode.IsProduction() {
		logger.Info("email not sent in development mode",
			"kind", kind,
			"recipient", strings.Join(msg.To, ","),
			"subject", msg.Subject,
			"preview", preview(msg.TextContent))
		return &Delivery{Sent: true, Mode: modeDevelopment, MessageID: "dev-" + uuid.New().String()}, nil
	}
	if err := d.configErr(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	id, err := d.mailer.Send(ctx, msg)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("mail provider timed out after %s: %w", d.opts.Timeout, err)
		}
		logger.Error("email send failed", "kind", kind, "recipient", strings.Join(msg.To, ","), "error", err)
		return nil, domain.MailSendError("notify."+kind, err)
	}
	logger.Info("email sent", "kind", kind, "recipient", strings.Join(msg.To, ","), "message_id", id)
	return &Delivery{Sent: true, Mode: modeProduction, MessageID: id}, nil
}

func alertBindings(name, email, message, priority string, score int) map[string]any {
	return map[string]any{
		"name":       name,
		"email":      email,
		"message":    message,
		"priority":   priority,
		"lead_score": score,
	}
}

func setIf(b map[string]any, key, val string) {
	if val != "" {
		b[key] = val
	}
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	return string([]rune(s)[:previewRunes]) + "..."
}
