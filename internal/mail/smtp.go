package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// SMTPConfig configures SMTPTransport.
type SMTPConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	From         string
	FromName     string
	ImplicitTLS  bool
	Timeout      time.Duration
	MaxPerSecond int
}

// SMTPTransport sends each message over its own SMTP session.
type SMTPTransport struct {
	cfg     SMTPConfig
	helo    string
	limiter *rate.Limiter
	signer  *Signer
	now     func() time.Time
}

func NewSMTPTransport(cfg SMTPConfig, signer *Signer) (*SMTPTransport, error) {
	if cfg.Host == "" || cfg.Port == "" {
		return nil, fmt.Errorf("SMTP host and port are required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	t := &SMTPTransport{
		cfg:    cfg,
		helo:   domainOf(cfg.From),
		signer: signer,
		now:    time.Now,
	}
	if t.helo == "" {
		t.helo = "localhost"
	}
	if cfg.MaxPerSecond > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.MaxPerSecond), cfg.MaxPerSecond)
	}
	return t, nil
}

func (t *SMTPTransport) Send(ctx context.Context, msg Message) (Receipt, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return Receipt{}, classify("rate_limit", err)
		}
	}

	receipt := Receipt{MessageID: fmt.Sprintf("<%s@%s>", uuid.NewString(), t.helo)}
	raw, err := buildMessage(envelope{
		From:      t.cfg.From,
		FromName:  t.cfg.FromName,
		MessageID: receipt.MessageID,
		Date:      t.now(),
	}, msg)
	if err != nil {
		return Receipt{}, &TransportError{Code: "build", Message: err.Error(), Err: err}
	}
	if raw, err = t.signer.Sign(raw, t.cfg.From); err != nil {
		return Receipt{}, &TransportError{Code: "dkim", Message: err.Error(), Err: err}
	}

	client, err := t.open(ctx)
	if err != nil {
		return Receipt{}, err
	}
	defer client.Close()

	if err := client.Mail(t.cfg.From); err != nil {
		return Receipt{}, classify("mail_from", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return Receipt{}, classify("rcpt_to", err)
	}
	w, err := client.Data()
	if err != nil {
		return Receipt{}, classify("data", err)
	}
	if _, err := w.Write(raw); err != nil {
		return Receipt{}, classify("data", err)
	}
	if err := w.Close(); err != nil {
		return Receipt{}, classify("data", err)
	}
	// The message is accepted once DATA closes; a failed QUIT does not undo that.
	_ = client.Quit()

	return receipt, nil
}

// Verify opens a session and quits.
func (t *SMTPTransport) Verify(ctx context.Context) error {
	client, err := t.open(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.Quit(); err != nil {
		return classify("quit", err)
	}
	return nil
}

func (t *SMTPTransport) open(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(t.cfg.Host, t.cfg.Port)
	dialer := &net.Dialer{Timeout: t.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classify("dial", err)
	}
	if err := conn.SetDeadline(time.Now().Add(2 * t.cfg.Timeout)); err != nil {
		conn.Close()
		return nil, classify("dial", err)
	}

	tlsConf := &tls.Config{ServerName: t.cfg.Host, MinVersion: tls.VersionTLS12}
	if t.cfg.ImplicitTLS {
		tlsConn := tls.Client(conn, tlsConf)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, classify("tls", err)
		}
		conn = tlsConn
	}

	client, err := smtp.NewClient(conn, t.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, classify("greeting", err)
	}
	if err := client.Hello(t.helo); err != nil {
		client.Close()
		return nil, classify("helo", err)
	}

	if !t.cfg.ImplicitTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConf); err != nil {
				client.Close()
				return nil, classify("starttls", err)
			}
		}
	}

	if t.cfg.Username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", t.cfg.Username, t.cfg.Password, t.cfg.Host)
			if err := client.Auth(auth); err != nil {
				client.Close()
				return nil, classify("auth", err)
			}
		}
	}
	return client, nil
}
