package pdf_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vicentsargues/FACTURAFACIL/internal/entity"
	"github.com/vicentsargues/FACTURAFACIL/internal/pdf"
)

type fakeLoader struct {
	img   entity.Image
	err   error
	calls atomic.Int32
}

func (f *fakeLoader) Load(context.Context, string) (entity.Image, error) {
	f.calls.Add(1)
	return f.img, f.err
}

func pngLogo(t *testing.T) entity.Image {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, 40, 20))

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return entity.Image{Data: buf.Bytes(), Type: "png"}
}

func testView(items int) entity.InvoiceView {
	view := entity.InvoiceView{
		Invoice: entity.Invoice{
			ID:        42,
			ClientID:  3,
			Date:      time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			TaxRate:   decimal.RequireFromString("0.21"),
			Subtotal:  decimal.RequireFromString("150"),
			TaxAmount: decimal.RequireFromString("31.50"),
			Total:     decimal.RequireFromString("181.50"),
		},
		Client: entity.Client{
			ID:       3,
			Name:     "Ana García",
			Email:    "ana@example.com",
			Address:  "C/ Mayor 1",
			City:     "46001 Valencia",
			Province: "(VALENCIA)",
			TaxID:    "12345678Z",
		},
	}

	for i := 0; i < items; i++ {
		view.Items = append(view.Items, entity.LineItem{
			Description: strings.Repeat("Diseño ", i%15+1),
			Price:       decimal.New(int64(i+1)*125, -2),
		})
	}

	return view
}

var testIssuer = entity.IssuerProfile{
	Name:        "ACME S.L.",
	TaxID:       "B12345678",
	Address:     "C/Protectora, 17",
	City:        "46320 SINARCAS",
	Province:    "(VALENCIA)",
	LogoRef:     "logo.png",
	PaymentNote: "Nº cta. para realizar la transferencia:",
	BankAccount: "ES00 0000 0000 0000 0000 0000",
}

func TestRenderer_Render(t *testing.T) {
	t.Parallel()

	loader := &fakeLoader{img: pngLogo(t)}
	r := pdf.New(pdf.DefaultLayout(), loader)

	doc, err := r.Render(context.Background(), testView(2), testIssuer)
	require.NoError(t, err)
	require.Equal(t, int64(42), doc.InvoiceID)
	require.Equal(t, 1, doc.Pages)
	require.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF-")))
	require.Equal(t, int32(1), loader.calls.Load())
}

func TestRenderer_Deterministic(t *testing.T) {
	t.Parallel()

	r := pdf.New(pdf.DefaultLayout(), &fakeLoader{img: pngLogo(t)})

	first, err := r.Render(context.Background(), testView(30), testIssuer)
	require.NoError(t, err)

	second, err := r.Render(context.Background(), testView(30), testIssuer)
	require.NoError(t, err)

	require.Equal(t, first.Pages, second.Pages)
	require.True(t, bytes.Equal(first.Data, second.Data))
}

func TestRenderer_Paginates(t *testing.T) {
	t.Parallel()

	r := pdf.New(pdf.DefaultLayout(), nil)

	doc, err := r.Render(context.Background(), testView(1), testIssuer)
	require.NoError(t, err)
	require.Equal(t, 1, doc.Pages)

	doc, err = r.Render(context.Background(), testView(120), testIssuer)
	require.NoError(t, err)
	require.GreaterOrEqual(t, doc.Pages, 3)
}

func TestRenderer_LogoFailures(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name   string
		loader *fakeLoader
	}{
		{
			name:   "missing file",
			loader: &fakeLoader{err: errors.New("open logo.png: no such file or directory")},
		},
		{
			name:   "not an image",
			loader: &fakeLoader{img: entity.Image{Data: []byte("<html>"), Type: "png"}},
		},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			noLogo, err := pdf.New(pdf.DefaultLayout(), nil).Render(context.Background(), testView(3), testIssuer)
			require.NoError(t, err)

			doc, err := pdf.New(pdf.DefaultLayout(), tt.loader).Render(context.Background(), testView(3), testIssuer)
			require.NoError(t, err)
			require.Equal(t, 1, doc.Pages)
			require.True(t, bytes.Equal(noLogo.Data, doc.Data))
		})
	}
}

func TestRenderer_NoFooterWithoutBankAccount(t *testing.T) {
	t.Parallel()

	issuer := testIssuer
	issuer.BankAccount = ""

	r := pdf.New(pdf.DefaultLayout(), nil)

	with, err := r.Render(context.Background(), testView(1), testIssuer)
	require.NoError(t, err)

	without, err := r.Render(context.Background(), testView(1), issuer)
	require.NoError(t, err)

	require.False(t, bytes.Equal(with.Data, without.Data))
}

func TestRenderer_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pdf.New(pdf.DefaultLayout(), nil).Render(ctx, testView(1), testIssuer)
	require.ErrorIs(t, err, entity.ErrRender)
}
