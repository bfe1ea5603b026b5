package mailer_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/vicentsargues/FACTURAFACIL/internal/clients/mailer"
	"github.com/vicentsargues/FACTURAFACIL/internal/entity"
	"github.com/vicentsargues/FACTURAFACIL/pkg/config"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	d.sent = append(d.sent, m...)
	return d.err
}

var validConfig = config.Mailer{
	Host:     "smtp.example.com",
	Port:     587,
	Login:    "billing@example.com",
	Password: "secret",
	From:     "billing@example.com",
	FromName: "ACME",
}

func testInvoice() (entity.InvoiceView, entity.Document) {
	view := entity.InvoiceView{
		Invoice: entity.Invoice{ID: 12},
		Client:  entity.Client{Name: "Ana", Email: "ana@example.com"},
	}

	return view, entity.Document{InvoiceID: 12, Data: []byte("%PDF-1.3 test")}
}

func TestClient_SendInvoice(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	c := mailer.NewWithDialer(validConfig, d)

	view, doc := testInvoice()

	err := c.SendInvoice(context.Background(), view, doc)
	require.NoError(t, err)
	require.Len(t, d.sent, 1)

	msg := d.sent[0]
	require.Equal(t, []string{"Factura #12"}, msg.GetHeader("Subject"))
	require.Equal(t, []string{`"ACME" <billing@example.com>`}, msg.GetHeader("From"))
	require.Equal(t, []string{`"Ana" <ana@example.com>`}, msg.GetHeader("To"))

	var buf bytes.Buffer

	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	require.Contains(t, buf.String(), `filename="factura_12.pdf"`)
	require.Contains(t, buf.String(), "application/pdf")
}

func TestClient_SendInvoice_NotConfigured(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{}
	cfg := validConfig
	cfg.Host = ""
	cfg.Password = ""

	view, doc := testInvoice()

	err := mailer.NewWithDialer(cfg, d).SendInvoice(context.Background(), view, doc)
	require.ErrorIs(t, err, entity.ErrConfiguration)
	require.Contains(t, err.Error(), "MAILER_HOST")
	require.Contains(t, err.Error(), "MAILER_PASSWORD")
	require.Empty(t, d.sent)
}

func TestClient_SendInvoice_TransportFails(t *testing.T) {
	t.Parallel()

	d := &fakeDialer{err: errors.New("535 authentication failed")}
	view, doc := testInvoice()

	err := mailer.NewWithDialer(validConfig, d).SendInvoice(context.Background(), view, doc)
	require.ErrorIs(t, err, entity.ErrDelivery)
	require.Contains(t, err.Error(), "535")
}

func TestBody(t *testing.T) {
	t.Parallel()

	view, _ := testInvoice()
	require.Equal(t, "Hola Ana,\n\nAdjuntamos la factura de sus servicios.\n\nUn saludo.", mailer.Body(view))
}
