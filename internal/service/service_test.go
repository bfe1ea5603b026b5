package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vicentsargues/FACTURAFACIL/internal/entity"
	"github.com/vicentsargues/FACTURAFACIL/internal/mocks"
	"github.com/vicentsargues/FACTURAFACIL/internal/service"
)

type deps struct {
	repo     *mocks.MockRepository
	renderer *mocks.MockRenderer
	store    *mocks.MockDocumentStore
	mailer   *mocks.MockMailer
	producer *mocks.MockProducer
	rates    *mocks.MockTaxRateSource
	s        *service.Service
}

var (
	testNow    = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	testIssuer = entity.IssuerProfile{Name: "ACME", BankAccount: "ES00 0000"}
)

func newDeps(t *testing.T) deps {
	t.Helper()

	ctrl := gomock.NewController(t)

	d := deps{
		repo:     mocks.NewMockRepository(ctrl),
		renderer: mocks.NewMockRenderer(ctrl),
		store:    mocks.NewMockDocumentStore(ctrl),
		mailer:   mocks.NewMockMailer(ctrl),
		producer: mocks.NewMockProducer(ctrl),
		rates:    mocks.NewMockTaxRateSource(ctrl),
	}

	d.s = service.New(d.repo, d.renderer, d.store, d.mailer, d.producer, d.rates, testIssuer).
		WithClock(func() time.Time { return testNow })

	return d
}

func validRequest() entity.CreateInvoiceRequest {
	return entity.CreateInvoiceRequest{
		ClientName:  "Ana Garcia",
		ClientEmail: " Ana@Example.com",
		ClientCity:  "Valencia",
		Items: []entity.RawLineItem{
			{Description: "Design", Price: "100"},
			{Description: "", Price: "50"},
			{Description: "ignored", Price: ""},
		},
	}
}

// expectCreate makes the repository accept the invoice and return it with ids assigned.
func expectCreate(t *testing.T, d deps) *entity.InvoiceView {
	t.Helper()

	view := &entity.InvoiceView{}

	d.repo.EXPECT().CreateInvoice(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c entity.Client, inv entity.Invoice) (entity.Invoice, error) {
			inv.ID = 7
			inv.ClientID = 3
			inv.CreatedAt = testNow
			c.ID = 3

			*view = entity.InvoiceView{Invoice: inv, Client: c}

			return inv, nil
		})

	d.repo.EXPECT().Invoice(gomock.Any(), int64(7)).
		DoAndReturn(func(context.Context, int64) (entity.InvoiceView, error) {
			return *view, nil
		})

	return view
}

func TestService_CreateInvoice(t *testing.T) {
	t.Parallel()

	d := newDeps(t)

	d.rates.EXPECT().TaxRate(gomock.Any()).Return(decimal.RequireFromString("0.21"), nil)
	view := expectCreate(t, d)

	doc := entity.Document{InvoiceID: 7, Data: []byte("%PDF"), Pages: 1}

	d.renderer.EXPECT().Render(gomock.Any(), gomock.Any(), testIssuer).Return(doc, nil)
	d.store.EXPECT().Save(gomock.Any(), int64(7), doc.Data).Return(nil)
	d.mailer.EXPECT().SendInvoice(gomock.Any(), gomock.Any(), doc).Return(nil)
	d.producer.EXPECT().SendInvoiceCreated(gomock.Any(), int64(7), int64(3), "ana@example.com", gomock.Any(), gomock.Any())

	res, err := d.s.CreateInvoice(context.Background(), validRequest())
	require.NoError(t, err)
	require.True(t, res.Delivered)
	require.Empty(t, res.Warnings)

	inv := res.Invoice
	require.Equal(t, int64(7), inv.ID)
	require.Equal(t, "ana@example.com", inv.Client.Email)
	require.Equal(t, "2024-03-15", inv.FormattedDate())
	require.Equal(t, "150.00", inv.Subtotal.StringFixed(2))
	require.Equal(t, "31.50", inv.TaxAmount.StringFixed(2))
	require.Equal(t, "181.50", inv.Total.StringFixed(2))
	require.Equal(t, []string{"Design", "-"}, []string{inv.Items[0].Description, inv.Items[1].Description})
	require.Equal(t, *view, inv)
}

func TestService_CreateInvoice_Rejected(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name   string
		modify func(r *entity.CreateInvoiceRequest)
	}{
		{
			name:   "empty items",
			modify: func(r *entity.CreateInvoiceRequest) { r.Items = nil },
		},
		{
			name:   "only blank prices",
			modify: func(r *entity.CreateInvoiceRequest) { r.Items = []entity.RawLineItem{{Description: "x"}} },
		},
		{
			name:   "negative price",
			modify: func(r *entity.CreateInvoiceRequest) { r.Items[0].Price = "-1" },
		},
		{
			name:   "missing email",
			modify: func(r *entity.CreateInvoiceRequest) { r.ClientEmail = " " },
		},
		{
			name:   "missing name",
			modify: func(r *entity.CreateInvoiceRequest) { r.ClientName = "" },
		},
		{
			name:   "bad date",
			modify: func(r *entity.CreateInvoiceRequest) { r.InvoiceDate = "15-03-2024" },
		},
	} {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			// No expectations: any call on a dependency fails the test.
			d := newDeps(t)

			req := validRequest()
			tt.modify(&req)

			_, err := d.s.CreateInvoice(context.Background(), req)
			require.ErrorIs(t, err, entity.ErrValidation)
		})
	}
}

func TestService_CreateInvoice_TaxRateMisconfigured(t *testing.T) {
	t.Parallel()

	d := newDeps(t)
	d.rates.EXPECT().TaxRate(gomock.Any()).Return(decimal.Decimal{}, fmt.Errorf("%w: negative", entity.ErrConfiguration))

	_, err := d.s.CreateInvoice(context.Background(), validRequest())
	require.ErrorIs(t, err, entity.ErrConfiguration)
}

func TestService_CreateInvoice_StorageFails(t *testing.T) {
	t.Parallel()

	d := newDeps(t)
	dbErr := errors.New("connection refused")

	d.rates.EXPECT().TaxRate(gomock.Any()).Return(decimal.RequireFromString("0.21"), nil)
	d.repo.EXPECT().CreateInvoice(gomock.Any(), gomock.Any(), gomock.Any()).Return(entity.Invoice{}, dbErr)

	_, err := d.s.CreateInvoice(context.Background(), validRequest())
	require.ErrorIs(t, err, dbErr)
}

func TestService_CreateInvoice_DeliveryFails(t *testing.T) {
	t.Parallel()

	d := newDeps(t)

	d.rates.EXPECT().TaxRate(gomock.Any()).Return(decimal.RequireFromString("0.21"), nil)
	expectCreate(t, d)

	doc := entity.Document{InvoiceID: 7, Data: []byte("%PDF"), Pages: 1}

	d.renderer.EXPECT().Render(gomock.Any(), gomock.Any(), gomock.Any()).Return(doc, nil)
	d.store.EXPECT().Save(gomock.Any(), int64(7), doc.Data).Return(nil)
	d.mailer.EXPECT().SendInvoice(gomock.Any(), gomock.Any(), doc).
		Return(fmt.Errorf("%w: MAILER_HOST is not set", entity.ErrConfiguration))
	d.producer.EXPECT().SendInvoiceCreated(gomock.Any(), int64(7), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any())

	res, err := d.s.CreateInvoice(context.Background(), validRequest())
	require.NoError(t, err)
	require.False(t, res.Delivered)
	require.Len(t, res.Warnings, 1)
	require.Contains(t, res.Warnings[0], "invoice created, delivery failed")
	require.Contains(t, res.Warnings[0], "MAILER_HOST")
	require.Equal(t, int64(7), res.Invoice.ID)
}

func TestService_CreateInvoice_RenderFails(t *testing.T) {
	t.Parallel()

	d := newDeps(t)

	d.rates.EXPECT().TaxRate(gomock.Any()).Return(decimal.RequireFromString("0.21"), nil)
	expectCreate(t, d)

	d.renderer.EXPECT().Render(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(entity.Document{}, fmt.Errorf("%w: font", entity.ErrRender))
	d.producer.EXPECT().SendInvoiceCreated(gomock.Any(), int64(7), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any())

	res, err := d.s.CreateInvoice(context.Background(), validRequest())
	require.NoError(t, err)
	require.False(t, res.Delivered)
	require.Len(t, res.Warnings, 1)
	require.Contains(t, res.Warnings[0], "invoice created, document rendering failed")
}

func TestService_CreateInvoice_StoreFails(t *testing.T) {
	t.Parallel()

	d := newDeps(t)

	d.rates.EXPECT().TaxRate(gomock.Any()).Return(decimal.RequireFromString("0.21"), nil)
	expectCreate(t, d)

	doc := entity.Document{InvoiceID: 7, Data: []byte("%PDF"), Pages: 1}

	d.renderer.EXPECT().Render(gomock.Any(), gomock.Any(), gomock.Any()).Return(doc, nil)
	d.store.EXPECT().Save(gomock.Any(), int64(7), doc.Data).Return(errors.New("disk full"))
	d.mailer.EXPECT().SendInvoice(gomock.Any(), gomock.Any(), doc).Return(nil)
	d.producer.EXPECT().SendInvoiceCreated(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any())

	res, err := d.s.CreateInvoice(context.Background(), validRequest())
	require.NoError(t, err)
	require.True(t, res.Delivered)
	require.Len(t, res.Warnings, 1)
	require.Contains(t, res.Warnings[0], "disk full")
}

func TestService_CreateInvoice_UsesGivenDate(t *testing.T) {
	t.Parallel()

	d := newDeps(t)

	d.rates.EXPECT().TaxRate(gomock.Any()).Return(decimal.RequireFromString("0.10"), nil)
	expectCreate(t, d)

	d.renderer.EXPECT().Render(gomock.Any(), gomock.Any(), gomock.Any()).Return(entity.Document{InvoiceID: 7}, nil)
	d.store.EXPECT().Save(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	d.mailer.EXPECT().SendInvoice(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	d.producer.EXPECT().SendInvoiceCreated(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any())

	req := validRequest()
	req.InvoiceDate = "2023-12-31"

	res, err := d.s.CreateInvoice(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "00007/2023", res.Invoice.Code())
	require.Equal(t, "0.10", res.Invoice.TaxRate.StringFixed(2))
	require.Equal(t, "165.00", res.Invoice.Total.StringFixed(2))
}

func TestService_Document(t *testing.T) {
	t.Parallel()

	view := entity.InvoiceView{Invoice: entity.Invoice{ID: 5}}

	t.Run("cached", func(t *testing.T) {
		t.Parallel()

		d := newDeps(t)
		d.repo.EXPECT().Invoice(gomock.Any(), int64(5)).Return(view, nil)
		d.store.EXPECT().Load(gomock.Any(), int64(5)).Return([]byte("cached"), nil)

		doc, err := d.s.Document(context.Background(), 5)
		require.NoError(t, err)
		require.Equal(t, []byte("cached"), doc.Data)
		require.Equal(t, "factura_5.pdf", doc.FileName())
	})

	t.Run("regenerated on miss", func(t *testing.T) {
		t.Parallel()

		d := newDeps(t)
		rendered := entity.Document{InvoiceID: 5, Data: []byte("fresh"), Pages: 2}

		d.repo.EXPECT().Invoice(gomock.Any(), int64(5)).Return(view, nil)
		d.store.EXPECT().Load(gomock.Any(), int64(5)).Return(nil, entity.ErrNotFound)
		d.renderer.EXPECT().Render(gomock.Any(), view, testIssuer).Return(rendered, nil)
		d.store.EXPECT().Save(gomock.Any(), int64(5), rendered.Data).Return(errors.New("read-only"))

		doc, err := d.s.Document(context.Background(), 5)
		require.NoError(t, err)
		require.Equal(t, rendered, doc)
	})

	t.Run("unknown invoice", func(t *testing.T) {
		t.Parallel()

		d := newDeps(t)
		d.repo.EXPECT().Invoice(gomock.Any(), int64(5)).Return(entity.InvoiceView{}, entity.ErrNotFound)

		_, err := d.s.Document(context.Background(), 5)
		require.ErrorIs(t, err, entity.ErrNotFound)
	})

	t.Run("render fails", func(t *testing.T) {
		t.Parallel()

		d := newDeps(t)
		d.repo.EXPECT().Invoice(gomock.Any(), int64(5)).Return(view, nil)
		d.store.EXPECT().Load(gomock.Any(), int64(5)).Return(nil, entity.ErrNotFound)
		d.renderer.EXPECT().Render(gomock.Any(), gomock.Any(), gomock.Any()).Return(entity.Document{}, entity.ErrRender)

		_, err := d.s.Document(context.Background(), 5)
		require.ErrorIs(t, err, entity.ErrRender)
	})
}

func TestService_Invoices(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		d := newDeps(t)
		email := " Ana@Example.com "

		d.repo.EXPECT().Invoices(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, f entity.InvoiceFilter) ([]entity.InvoiceSummary, int, error) {
				require.Equal(t, uint64(1), f.Page)
				require.Equal(t, uint64(20), f.Limit)
				require.Equal(t, entity.SortByID, f.SortBy)
				require.Equal(t, entity.DESC, f.OrderBy)
				require.Equal(t, "ana@example.com", *f.ClientEmail)

				return []entity.InvoiceSummary{{ID: 1}}, 1, nil
			})

		list, total, err := d.s.Invoices(context.Background(), entity.InvoiceFilter{ClientEmail: &email})
		require.NoError(t, err)
		require.Equal(t, 1, total)
		require.Len(t, list, 1)
	})

	t.Run("invalid sort", func(t *testing.T) {
		t.Parallel()

		d := newDeps(t)

		_, _, err := d.s.Invoices(context.Background(), entity.InvoiceFilter{SortBy: "name; DROP TABLE invoices"})
		require.ErrorIs(t, err, entity.ErrValidation)
	})

	t.Run("limit too big", func(t *testing.T) {
		t.Parallel()

		d := newDeps(t)

		_, _, err := d.s.Invoices(context.Background(), entity.InvoiceFilter{Limit: 1000})
		require.ErrorIs(t, err, entity.ErrValidation)
	})
}

func TestService_ResolveClient(t *testing.T) {
	t.Parallel()

	d := newDeps(t)

	d.repo.EXPECT().ResolveClient(gomock.Any(), entity.Client{Name: "Ana", Email: "ana@example.com"}).Return(int64(3), nil)

	id, err := d.s.ResolveClient(context.Background(), entity.Client{Name: " Ana", Email: "ANA@example.com "})
	require.NoError(t, err)
	require.Equal(t, int64(3), id)

	_, err = d.s.ResolveClient(context.Background(), entity.Client{Name: "Ana"})
	require.ErrorIs(t, err, entity.ErrValidation)
}

func TestService_Clients(t *testing.T) {
	t.Parallel()

	d := newDeps(t)
	clients := []entity.Client{{ID: 1, Name: "Ana", Email: "ana@example.com"}}

	d.repo.EXPECT().Clients(gomock.Any(), entity.ClientFilter{Search: "ana", Limit: 100}).Return(clients, nil)

	got, err := d.s.Clients(context.Background(), entity.ClientFilter{Search: " ana "})
	require.NoError(t, err)
	require.Equal(t, clients, got)
}

func TestService_WarmDocuments(t *testing.T) {
	t.Parallel()

	d := newDeps(t)

	d.repo.EXPECT().InvoiceIDsSince(gomock.Any(), testNow.Add(-time.Hour)).Return([]int64{1, 2, 3}, nil)

	d.store.EXPECT().Exists(gomock.Any(), int64(1)).Return(true, nil)
	d.store.EXPECT().Exists(gomock.Any(), int64(2)).Return(false, nil)
	d.store.EXPECT().Exists(gomock.Any(), int64(3)).Return(false, nil)

	view2 := entity.InvoiceView{Invoice: entity.Invoice{ID: 2}}

	d.repo.EXPECT().Invoice(gomock.Any(), int64(2)).Return(view2, nil)
	d.repo.EXPECT().Invoice(gomock.Any(), int64(3)).Return(entity.InvoiceView{}, errors.New("timeout"))

	d.renderer.EXPECT().Render(gomock.Any(), view2, testIssuer).Return(entity.Document{InvoiceID: 2, Data: []byte("2")}, nil)
	d.store.EXPECT().Save(gomock.Any(), int64(2), []byte("2")).Return(nil)

	err := d.s.WarmDocuments(context.Background(), time.Hour)
	require.Error(t, err)
	require.Contains(t, err.Error(), "get invoice 3")
}
