package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"time"

	"milda_bot/models"
	"milda_bot/workpool"

	"github.com/domodwyer/mailyak/v3"
)

// Sender delivers one plain-text email.
type Sender interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// SMTPSender submits mail over STARTTLS with PLAIN auth.
type SMTPSender struct {
	addr     string
	host     string
	from     string
	password string
}

func NewSMTPSender(addr, from, password string) *SMTPSender {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return &SMTPSender{addr: addr, host: host, from: from, password: password}
}

func (s *SMTPSender) build(to []string, subject, body string) *mailyak.MailYak {
	mail := mailyak.New(s.addr, smtp.PlainAuth("", s.from, s.password, s.host))
	mail.To(to...)
	mail.From(s.from)
	mail.FromName("MILDA Support")
	mail.Subject(subject)
	mail.Plain().Set(body)
	return mail
}

// Send builds the message with mailyak and runs the SMTP exchange on a
// connection bounded by ctx, so a stalled server cannot hold a worker.
func (s *SMTPSender) Send(ctx context.Context, to []string, subject, body string) error {
	mail := s.build(to, subject, body)
	buf, err := mail.MimeBuf()
	if err != nil {
		return fmt.Errorf("build mail: %w", err)
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return fmt.Errorf("smtp deadline: %w", err)
		}
	}

	if err := s.exchange(conn, to, buf.Bytes()); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) exchange(conn net.Conn, to []string, msg []byte) error {
	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return err
		}
	}
	if s.password != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", s.from, s.password, s.host)); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(s.from); err != nil {
		return err
	}
	for _, addr := range to {
		if err := c.Rcpt(addr); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// Dispatcher emails the admin list when a ticket is created. Delivery runs
// in the background; failures are logged and never reach the reporter.
type Dispatcher struct {
	sender   Sender
	admins   []string
	sheetURL string
	pool     *workpool.Pool
	log      *slog.Logger
	timeout  time.Duration
}

func NewDispatcher(sender Sender, admins []string, sheetURL string, pool *workpool.Pool, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:   sender,
		admins:   admins,
		sheetURL: sheetURL,
		pool:     pool,
		log:      logger.With("component", "notify"),
		timeout:  30 * time.Second,
	}
}

func (d *Dispatcher) TicketCreated(ctx context.Context, t models.Ticket) {
	if len(d.admins) == 0 {
		d.log.Warn("no admin addresses configured, skipping notification", "ticket_id", t.ID)
		return
	}
	subject, body := Compose(t, d.sheetURL)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)

	d.pool.Go(ctx, func(ctx context.Context) error {
		defer cancel()
		if err := d.sender.Send(ctx, d.admins, subject, body); err != nil {
			return err
		}
		d.log.Info("admin notification sent", "ticket_id", t.ID, "recipients", len(d.admins))
		return nil
	}, func(err error) {
		cancel()
		d.log.Error("admin notification failed", "ticket_id", t.ID, "error", err)
	})
}

// Wait blocks until queued notifications have finished.
func (d *Dispatcher) Wait() {
	d.pool.Wait()
}

// Compose renders the admin email for a new ticket.
func Compose(t models.Ticket, sheetURL string) (subject, body string) {
	chatID := t.ChatID
	if chatID == "" {
		chatID = "N/A"
	}
	subject = "Nouveau Ticket: " + t.ID
	body = fmt.Sprintf("Campagne MILDA SUPPORT - Nouveau ticket créé:\n\n"+
		"Numéro de Ticket: %s\n"+
		"Catégorie: %s\n"+
		"Description: %s\n"+
		"Priorité: %s\n"+
		"Chat ID: %s\n",
		t.ID, t.Category, t.Description, t.Priority, chatID)
	if sheetURL != "" {
		body += "\nVoir tous les tickets ici: " + sheetURL
	}
	return subject, body
}
