package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/vicentsargues/FACTURAFACIL/internal/entity"
	"github.com/vicentsargues/FACTURAFACIL/pkg/config"
)

type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Client struct {
	cfg    config.Mailer
	dialer Dialer
}

func New(cfg config.Mailer) *Client {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Login, cfg.Password)

	dialer.TLSConfig = &tls.Config{
		ServerName: cfg.Host,
		MinVersion: tls.VersionTLS12,
	}

	return NewWithDialer(cfg, dialer)
}

func NewWithDialer(cfg config.Mailer, dialer Dialer) *Client {
	return &Client{
		cfg:    cfg,
		dialer: dialer,
	}
}

// SendInvoice emails the document to the invoice client.
func (c *Client) SendInvoice(ctx context.Context, view entity.InvoiceView, doc entity.Document) error {
	err := c.validate()
	if err != nil {
		return err
	}

	if strings.TrimSpace(view.Client.Email) == "" {
		return fmt.Errorf("%w: client has no email", entity.ErrDelivery)
	}

	err = ctx.Err()
	if err != nil {
		return fmt.Errorf("%w: %w", entity.ErrDelivery, err)
	}

	msg := gomail.NewMessage(
		gomail.SetCharset("UTF-8"),
		gomail.SetEncoding(gomail.Base64),
	)

	msg.SetAddressHeader("From", c.cfg.From, c.cfg.FromName)
	msg.SetAddressHeader("To", view.Client.Email, view.Client.Name)
	msg.SetHeader("Subject", Subject(view))
	msg.SetBody("text/plain", Body(view))

	msg.Attach(doc.FileName(),
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(doc.Data)
			return err
		}),
		gomail.SetHeader(map[string][]string{
			"Content-Type": {fmt.Sprintf("application/pdf; name=%q", doc.FileName())},
		}),
	)

	err = c.dialer.DialAndSend(msg)
	if err != nil {
		return fmt.Errorf("%w: send email to %s: %w", entity.ErrDelivery, view.Client.Email, err)
	}

	return nil
}

func (c *Client) validate() error {
	var missing []string

	if c.cfg.Host == "" {
		missing = append(missing, "MAILER_HOST")
	}

	if c.cfg.Port <= 0 {
		missing = append(missing, "MAILER_PORT")
	}

	if c.cfg.Login == "" {
		missing = append(missing, "MAILER_LOGIN")
	}

	if c.cfg.Password == "" {
		missing = append(missing, "MAILER_PASSWORD")
	}

	if c.cfg.From == "" {
		missing = append(missing, "MAILER_FROM")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s not set", entity.ErrConfiguration, strings.Join(missing, ", "))
	}

	return nil
}

func Subject(view entity.InvoiceView) string {
	return fmt.Sprintf("Factura #%d", view.ID)
}

func Body(view entity.InvoiceView) string {
	return fmt.Sprintf("Hola %s,\n\nAdjuntamos la factura de sus servicios.\n\nUn saludo.", view.Client.Name)
}
