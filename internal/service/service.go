package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vicentsargues/FACTURAFACIL/internal/entity"
	"github.com/vicentsargues/FACTURAFACIL/pkg/logger"
)

//go:generate go run go.uber.org/mock/mockgen@latest -source=service.go -destination=../mocks/service.go -package=mocks

type Repository interface {
	CreateInvoice(ctx context.Context, client entity.Client, inv entity.Invoice) (entity.Invoice, error)
	Invoice(ctx context.Context, id int64) (entity.InvoiceView, error)
	ResolveClient(ctx context.Context, client entity.Client) (int64, error)
	Clients(ctx context.Context, filter entity.ClientFilter) ([]entity.Client, error)
	Invoices(ctx context.Context, filter entity.InvoiceFilter) ([]entity.InvoiceSummary, int, error)
	InvoiceIDsSince(ctx context.Context, since time.Time) ([]int64, error)
}

type Renderer interface {
	Render(ctx context.Context, view entity.InvoiceView, issuer entity.IssuerProfile) (entity.Document, error)
}

type DocumentStore interface {
	Save(ctx context.Context, invoiceID int64, data []byte) error
	Load(ctx context.Context, invoiceID int64) ([]byte, error)
	Exists(ctx context.Context, invoiceID int64) (bool, error)
}

type Mailer interface {
	SendInvoice(ctx context.Context, view entity.InvoiceView, doc entity.Document) error
}

type Producer interface {
	SendInvoiceCreated(ctx context.Context, invoiceID, clientID int64, clientEmail string, date time.Time, total decimal.Decimal)
}

type TaxRateSource interface {
	TaxRate(ctx context.Context) (decimal.Decimal, error)
}

type Service struct {
	repo     Repository
	renderer Renderer
	store    DocumentStore
	mailer   Mailer
	producer Producer
	rates    TaxRateSource
	issuer   entity.IssuerProfile
	now      func() time.Time
}

func New(
	repo Repository,
	renderer Renderer,
	store DocumentStore,
	mailer Mailer,
	producer Producer,
	rates TaxRateSource,
	issuer entity.IssuerProfile,
) *Service {
	return &Service{
		repo:     repo,
		renderer: renderer,
		store:    store,
		mailer:   mailer,
		producer: producer,
		rates:    rates,
		issuer:   issuer,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for default invoice dates and the warm-up window.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateInvoice validates the request, persists the invoice and then renders, caches and sends the document.
// Once the invoice is stored the call succeeds; later failures are reported as warnings.
func (s *Service) CreateInvoice(ctx context.Context, req entity.CreateInvoiceRequest) (entity.CreateInvoiceResult, error) {
	client, err := NormalizeClient(clientFromRequest(req))
	if err != nil {
		return entity.CreateInvoiceResult{}, err
	}

	items, err := ParseItems(req.Items)
	if err != nil {
		return entity.CreateInvoiceResult{}, err
	}

	date, err := ParseInvoiceDate(req.InvoiceDate, s.now())
	if err != nil {
		return entity.CreateInvoiceResult{}, err
	}

	rate, err := s.rates.TaxRate(ctx)
	if err != nil {
		return entity.CreateInvoiceResult{}, fmt.Errorf("get tax rate: %w", err)
	}

	totals := Calculate(items, rate)

	inv, err := s.repo.CreateInvoice(ctx, client, entity.Invoice{
		Date:      date,
		TaxRate:   rate,
		Subtotal:  totals.Subtotal,
		TaxAmount: totals.TaxAmount,
		Total:     totals.Total,
		Items:     items,
	})
	if err != nil {
		return entity.CreateInvoiceResult{}, fmt.Errorf("create invoice: %w", err)
	}

	ctx = logger.WithInvoiceID(ctx, inv.ID)
	slog.InfoContext(ctx, "invoice created", "client_id", inv.ClientID, "total", inv.Total.StringFixed(moneyPlaces))

	view, err := s.repo.Invoice(ctx, inv.ID)
	if err != nil {
		// The invoice is committed; fall back to what was just written.
		slog.WarnContext(ctx, "read created invoice", "error", err)

		client.ID = inv.ClientID
		view = entity.InvoiceView{Invoice: inv, Client: client}
	}

	result := entity.CreateInvoiceResult{Invoice: view}

	doc, err := s.renderer.Render(ctx, view, s.issuer)
	if err != nil {
		slog.ErrorContext(ctx, "render invoice", "error", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("invoice created, document rendering failed: %s", err))
		s.publish(ctx, view)

		return result, nil
	}

	err = s.store.Save(ctx, inv.ID, doc.Data)
	if err != nil {
		slog.WarnContext(ctx, "store invoice document", "error", err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("invoice created, document could not be stored: %s", err))
	}

	err = s.mailer.SendInvoice(ctx, view, doc)
	if err != nil {
		slog.WarnContext(ctx, "send invoice", "error", err, "email", view.Client.Email)
		result.Warnings = append(result.Warnings, fmt.Sprintf("invoice created, delivery failed: %s", err))
	} else {
		result.Delivered = true
	}

	s.publish(ctx, view)

	return result, nil
}

func (s *Service) publish(ctx context.Context, view entity.InvoiceView) {
	s.producer.SendInvoiceCreated(ctx, view.ID, view.ClientID, view.Client.Email, view.Date, view.Total)
}

func (s *Service) Invoice(ctx context.Context, id int64) (entity.InvoiceView, error) {
	if id <= 0 {
		return entity.InvoiceView{}, fmt.Errorf("%w: invalid invoice id %d", entity.ErrValidation, id)
	}

	view, err := s.repo.Invoice(ctx, id)
	if err != nil {
		return entity.InvoiceView{}, fmt.Errorf("get invoice %d: %w", id, err)
	}

	return view, nil
}

// Document returns the cached document of an invoice, rendering and caching it again when it is missing.
func (s *Service) Document(ctx context.Context, id int64) (entity.Document, error) {
	view, err := s.Invoice(ctx, id)
	if err != nil {
		return entity.Document{}, err
	}

	ctx = logger.WithInvoiceID(ctx, id)

	data, err := s.store.Load(ctx, id)
	if err == nil {
		return entity.Document{InvoiceID: id, Data: data}, nil
	}

	if !errors.Is(err, entity.ErrNotFound) {
		slog.WarnContext(ctx, "load cached document", "error", err)
	}

	return s.renderAndStore(ctx, view)
}

func (s *Service) renderAndStore(ctx context.Context, view entity.InvoiceView) (entity.Document, error) {
	doc, err := s.renderer.Render(ctx, view, s.issuer)
	if err != nil {
		return entity.Document{}, fmt.Errorf("render invoice %d: %w", view.ID, err)
	}

	err = s.store.Save(ctx, view.ID, doc.Data)
	if err != nil {
		slog.WarnContext(ctx, "store invoice document", "error", err)
	}

	return doc, nil
}

func (s *Service) ResolveClient(ctx context.Context, client entity.Client) (int64, error) {
	client, err := NormalizeClient(client)
	if err != nil {
		return 0, err
	}

	id, err := s.repo.ResolveClient(ctx, client)
	if err != nil {
		return 0, fmt.Errorf("resolve client: %w", err)
	}

	return id, nil
}

func (s *Service) Clients(ctx context.Context, filter entity.ClientFilter) ([]entity.Client, error) {
	clients, err := s.repo.Clients(ctx, validateClientFilter(filter))
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}

	return clients, nil
}

func (s *Service) Invoices(ctx context.Context, filter entity.InvoiceFilter) ([]entity.InvoiceSummary, int, error) {
	filter, err := validateInvoiceFilter(filter)
	if err != nil {
		return nil, 0, err
	}

	invoices, total, err := s.repo.Invoices(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}

	return invoices, total, nil
}

// WarmDocuments renders the missing documents of invoices created within the lookback window.
func (s *Service) WarmDocuments(ctx context.Context, lookback time.Duration) error {
	ids, err := s.repo.InvoiceIDsSince(ctx, s.now().Add(-lookback))
	if err != nil {
		return fmt.Errorf("list recent invoices: %w", err)
	}

	var errs []error

	warmed := 0

	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		ok, err := s.store.Exists(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("check document %d: %w", id, err))
			continue
		}

		if ok {
			continue
		}

		view, err := s.repo.Invoice(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("get invoice %d: %w", id, err))
			continue
		}

		doc, err := s.renderer.Render(ctx, view, s.issuer)
		if err != nil {
			errs = append(errs, fmt.Errorf("render invoice %d: %w", id, err))
			continue
		}

		err = s.store.Save(ctx, id, doc.Data)
		if err != nil {
			errs = append(errs, fmt.Errorf("store document %d: %w", id, err))
			continue
		}

		warmed++
	}

	if warmed > 0 {
		slog.InfoContext(ctx, "documents warmed", "count", warmed)
	}

	return errors.Join(errs...)
}
