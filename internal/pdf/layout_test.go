package pdf

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vicentsargues/FACTURAFACIL/internal/entity"
)

func TestPlaceRows(t *testing.T) {
	t.Parallel()

	l := DefaultLayout()
	l.RowHeight = 10
	l.BottomThreshold = l.PageHeight - 115

	rows := placeRows(100, 3, l)
	require.Equal(t, []placement{
		{Page: 0, Y: 100},
		{Page: 0, Y: 110},
		{Page: 1, Y: l.continuationY()},
	}, rows)

	rows = placeRows(100, 2, l)
	require.Equal(t, 0, rows[len(rows)-1].Page)

	require.Empty(t, placeRows(100, 0, l))
}

func TestPlaceRows_ManyPages(t *testing.T) {
	t.Parallel()

	l := DefaultLayout()
	rows := placeRows(l.Margin+270*pt, 200, l)

	pages := rows[len(rows)-1].Page + 1
	require.Greater(t, pages, 3)

	for i, r := range rows {
		require.LessOrEqual(t, r.Y, l.PageHeight-l.BottomThreshold+l.RowHeight, "row %d", i)

		if i > 0 && r.Page != rows[i-1].Page {
			require.InDelta(t, l.continuationY(), r.Y, 1e-9)
		}
	}
}

func TestRender_BreaksBeforeThirdRow(t *testing.T) {
	t.Parallel()

	// Rows start 270pt below the top margin when issuer and client have every field set.
	l := DefaultLayout()
	start := l.Margin + 270*pt
	l.BottomThreshold = l.PageHeight - (start + 1.5*l.RowHeight)

	view := entity.InvoiceView{
		Invoice: entity.Invoice{
			ID:        1,
			Date:      time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			TaxRate:   decimal.RequireFromString("0.21"),
			Subtotal:  decimal.RequireFromString("3"),
			TaxAmount: decimal.RequireFromString("0.63"),
			Total:     decimal.RequireFromString("3.63"),
			Items: []entity.LineItem{
				{Description: "one", Price: decimal.RequireFromString("1")},
				{Description: "two", Price: decimal.RequireFromString("1")},
				{Description: "three", Price: decimal.RequireFromString("1")},
			},
		},
		Client: entity.Client{Name: "Ana", TaxID: "X1", Address: "C/ Mayor 1", City: "Valencia"},
	}
	issuer := entity.IssuerProfile{Name: "ACME", TaxID: "B1", Address: "C/ Sol 2", City: "Madrid"}

	doc, err := New(l, nil).Render(context.Background(), view, issuer)
	require.NoError(t, err)
	require.Equal(t, 2, doc.Pages)

	view.Items = view.Items[:2]

	doc, err = New(l, nil).Render(context.Background(), view, issuer)
	require.NoError(t, err)
	require.Equal(t, 1, doc.Pages)
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	require.Equal(t, "short", truncate("short", 70))
	require.Equal(t, "ñañañ...", truncate("ñañañaña", 5))
	require.Equal(t, "exact", truncate("exact", 5))
}

func TestPercent(t *testing.T) {
	t.Parallel()

	require.Equal(t, "21", percent(decimal.RequireFromString("0.21")))
	require.Equal(t, "10.5", percent(decimal.RequireFromString("0.105")))
	require.Equal(t, "0", percent(decimal.Zero))
}

func TestHeaderFontSizes(t *testing.T) {
	t.Parallel()

	l := DefaultLayout()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.AddPage()

	d := &document{pdf: pdf, l: l, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	d.header(entity.InvoiceView{Invoice: entity.Invoice{ID: 1, Date: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)}})

	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))

	// Title at 20, number, date and code lines at 10.
	out := buf.String()
	require.Contains(t, out, "20.00 Tf")
	require.Contains(t, out, "10.00 Tf")
	require.NotContains(t, out, "11.00 Tf")
}
