package pdf

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/vicentsargues/FACTURAFACIL/internal/entity"
)

type LogoLoader interface {
	Load(ctx context.Context, ref string) (entity.Image, error)
}

type Renderer struct {
	layout Layout
	logos  LogoLoader
}

// New returns a renderer. A nil loader disables logos.
func New(layout Layout, logos LogoLoader) *Renderer {
	return &Renderer{
		layout: layout,
		logos:  logos,
	}
}

// Render lays out the invoice on A4 pages. The same invoice and issuer always produce the same bytes.
func (r *Renderer) Render(ctx context.Context, view entity.InvoiceView, issuer entity.IssuerProfile) (entity.Document, error) {
	err := ctx.Err()
	if err != nil {
		return entity.Document{}, fmt.Errorf("%w: %w", entity.ErrRender, err)
	}

	l := r.layout

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(l.Margin, l.Margin, l.Margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreationDate(view.Date)
	pdf.SetCatalogSort(true)

	d := &document{pdf: pdf, l: l, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.SetTitle(fmt.Sprintf("%s %s", l.Labels.Title, view.Code()), true)
	pdf.SetAuthor(issuer.Name, true)
	pdf.SetCreator("FACTURAFACIL", false)

	pdf.AddPage()

	r.drawLogo(ctx, d, issuer.LogoRef)

	y := d.header(view)
	y = d.issuer(y, issuer)
	y = d.client(y, view.Client)
	y = d.items(y, view.Items)
	d.totals(y, view.Invoice)
	d.footer(issuer)

	if pdf.Err() {
		return entity.Document{}, fmt.Errorf("%w: %w", entity.ErrRender, pdf.Error())
	}

	var buf bytes.Buffer

	err = pdf.Output(&buf)
	if err != nil {
		return entity.Document{}, fmt.Errorf("%w: %w", entity.ErrRender, err)
	}

	return entity.Document{
		InvoiceID: view.ID,
		Data:      buf.Bytes(),
		Pages:     pdf.PageCount(),
	}, nil
}

func (r *Renderer) drawLogo(ctx context.Context, d *document, ref string) {
	if r.logos == nil || strings.TrimSpace(ref) == "" {
		return
	}

	img, err := r.logos.Load(ctx, ref)
	if err != nil {
		slog.WarnContext(ctx, "load logo", "logo", ref, "error", err)
		return
	}

	opts := gofpdf.ImageOptions{ImageType: img.Type}

	info := d.pdf.RegisterImageOptionsReader("logo", opts, bytes.NewReader(img.Data))
	if d.pdf.Err() || info == nil || info.Width() <= 0 || info.Height() <= 0 {
		slog.WarnContext(ctx, "decode logo", "logo", ref, "error", d.pdf.Error())
		d.pdf.ClearError()

		return
	}

	l := d.l

	// Fit into the box keeping the aspect ratio, centred.
	scale := min(l.LogoWidth/info.Width(), l.LogoHeight/info.Height())
	w, h := info.Width()*scale, info.Height()*scale
	x := l.right() - l.LogoWidth - 5 + (l.LogoWidth-w)/2
	y := l.Margin + (l.LogoHeight-h)/2

	d.pdf.ImageOptions("logo", x, y, w, h, false, opts, 0, "")
}

type document struct {
	pdf *gofpdf.Fpdf
	l   Layout
	tr  func(string) string
}

func (d *document) text(x, y float64, family, style string, size float64, s string) {
	d.pdf.SetFont(family, style, size)
	d.pdf.Text(x, y, d.tr(s))
}

func (d *document) textRight(x, y float64, family, style string, size float64, s string) {
	d.pdf.SetFont(family, style, size)

	s = d.tr(s)
	d.pdf.Text(x-d.pdf.GetStringWidth(s), y, s)
}

func (d *document) rule(y float64) {
	d.pdf.SetLineWidth(0.2)
	d.pdf.Line(d.l.Margin, y, d.l.right(), y)
}

func (d *document) header(view entity.InvoiceView) float64 {
	l := d.l
	x := l.Margin
	y := l.Margin

	d.text(x, y, "Helvetica", "B", 20, l.Labels.Title)
	y += 25 * pt

	d.text(x, y, "Helvetica", "", 10, fmt.Sprintf("%s %s", l.Labels.Number, view.Number()))
	y += 15 * pt

	d.text(x, y, "Helvetica", "", 10, fmt.Sprintf("%s %s", l.Labels.Date, view.FormattedDate()))
	y += 15 * pt

	d.text(x, y, "Helvetica", "B", 10, fmt.Sprintf("%s %s", l.Labels.Code, view.Code()))

	return y + 30*pt
}

func (d *document) issuer(y float64, p entity.IssuerProfile) float64 {
	l := d.l
	x := l.Margin

	d.text(x, y, "Helvetica", "B", 12, p.Name)
	y += 15 * pt

	if p.TaxID != "" {
		d.text(x, y, "Helvetica", "", 10, fmt.Sprintf("%s %s", l.Labels.TaxID, p.TaxID))
		y += 15 * pt
	}

	if p.Address != "" {
		d.text(x, y, "Helvetica", "", 10, p.Address)
		y += 15 * pt
	}

	if line := p.CityLine(); line != "" {
		d.text(x, y, "Helvetica", "", 10, line)
		y += 20 * pt
	}

	d.pdf.SetLineWidth(0.3)
	d.pdf.SetDashPattern([]float64{1 * pt, 2 * pt}, 0)
	d.pdf.Line(x, y-5*pt, x+50, y-5*pt)
	d.pdf.SetDashPattern([]float64{}, 0)

	return y + 10*pt
}

func (d *document) client(y float64, c entity.Client) float64 {
	l := d.l
	x := l.Margin

	d.text(x, y, "Helvetica", "B", 11, l.Labels.ClientHeading)
	y += 15 * pt

	d.text(x, y, "Helvetica", "", 10, c.Name)
	y += 15 * pt

	if c.TaxID != "" {
		d.text(x, y, "Helvetica", "", 10, fmt.Sprintf("%s %s", l.Labels.ClientTaxID, c.TaxID))
		y += 15 * pt
	}

	if c.Address != "" {
		d.text(x, y, "Helvetica", "", 10, c.Address)
		y += 15 * pt
	}

	if line := c.CityLine(); line != "" {
		d.text(x, y, "Helvetica", "", 10, line)
		y += 15 * pt
	}

	return y
}

func (d *document) items(y float64, items []entity.LineItem) float64 {
	l := d.l

	tableTop := y + 15*pt

	d.text(l.Margin, tableTop, "Helvetica", "B", 10, l.Labels.Description)
	d.textRight(l.right(), tableTop, "Helvetica", "B", 10, l.Labels.Amount)
	d.rule(tableTop + 5*pt)

	rows := placeRows(tableTop+20*pt, len(items), l)
	page := 0

	for i, item := range items {
		if rows[i].Page != page {
			d.pdf.AddPage()
			page = rows[i].Page
		}

		d.text(l.Margin, rows[i].Y, "Helvetica", "", 10, truncate(item.Description, l.DescriptionMax))
		d.textRight(l.right(), rows[i].Y, "Helvetica", "", 10, d.money(item.Price))

		y = rows[i].Y + l.RowHeight
	}

	if len(items) == 0 {
		y = tableTop + 20*pt
	}

	return y
}

func (d *document) totals(y float64, inv entity.Invoice) {
	l := d.l
	labelX := l.right() - 80

	y += 10 * pt
	d.rule(y)
	y += 20 * pt

	d.text(labelX, y, "Helvetica", "", 10, l.Labels.Subtotal)
	d.textRight(l.right(), y, "Helvetica", "", 10, d.money(inv.Subtotal))
	y += 15 * pt

	d.text(labelX, y, "Helvetica", "", 10, fmt.Sprintf("%s (%s%%):", l.Labels.Tax, percent(inv.TaxRate)))
	d.textRight(l.right(), y, "Helvetica", "", 10, d.money(inv.TaxAmount))
	y += 15 * pt

	d.text(labelX, y, "Helvetica", "B", 12, l.Labels.Total)
	d.textRight(l.right(), y, "Helvetica", "B", 12, d.money(inv.Total))
}

func (d *document) footer(p entity.IssuerProfile) {
	if strings.TrimSpace(p.BankAccount) == "" {
		return
	}

	l := d.l
	y := l.PageHeight - l.FooterOffset

	d.rule(y)
	y += 15 * pt

	d.text(l.Margin, y, "Helvetica", "B", 10, p.PaymentNote)
	y += 15 * pt

	d.text(l.Margin, y, "Courier", "", 11, p.BankAccount)
}

func (d *document) money(v decimal.Decimal) string {
	return fmt.Sprintf("%s %s", v.StringFixed(2), d.l.Currency)
}

func percent(rate decimal.Decimal) string {
	return rate.Shift(2).String()
}

func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}

	return string([]rune(s)[:limit]) + "..."
}
