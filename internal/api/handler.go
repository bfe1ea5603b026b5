package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vicentsargues/FACTURAFACIL/internal/entity"
)

// @title FACTURAFACIL API
// @version 1.0
// @description Issues invoices, renders them as PDF and emails them to clients
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-Api-Key

//go:generate go run go.uber.org/mock/mockgen@latest -source=handler.go -destination=../mocks/handler.go -package=mocks

type Service interface {
	CreateInvoice(ctx context.Context, req entity.CreateInvoiceRequest) (entity.CreateInvoiceResult, error)
	Invoice(ctx context.Context, id int64) (entity.InvoiceView, error)
	Document(ctx context.Context, id int64) (entity.Document, error)
	Clients(ctx context.Context, filter entity.ClientFilter) ([]entity.Client, error)
	Invoices(ctx context.Context, filter entity.InvoiceFilter) ([]entity.InvoiceSummary, int, error)
}

type Handler struct {
	s Service
}

func NewHandler(s Service) *Handler {
	return &Handler{
		s: s,
	}
}

type ItemRequest struct {
	Description string `json:"description"`
	Price       string `json:"price" example:"100,50"`
}

type CreateInvoiceRequest struct {
	ClientName     string        `json:"client_name"`
	ClientEmail    string        `json:"client_email"`
	ClientAddress  string        `json:"client_address"`
	ClientCity     string        `json:"client_city"`
	ClientProvince string        `json:"client_province"`
	ClientTaxID    string        `json:"client_tax_id"`
	Items          []ItemRequest `json:"items"`
	InvoiceDate    string        `json:"invoice_date" example:"2024-03-15"`
}

func (r CreateInvoiceRequest) toEntity() entity.CreateInvoiceRequest {
	items := make([]entity.RawLineItem, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, entity.RawLineItem{Description: item.Description, Price: item.Price})
	}

	return entity.CreateInvoiceRequest{
		ClientName:     r.ClientName,
		ClientEmail:    r.ClientEmail,
		ClientAddress:  r.ClientAddress,
		ClientCity:     r.ClientCity,
		ClientProvince: r.ClientProvince,
		ClientTaxID:    r.ClientTaxID,
		Items:          items,
		InvoiceDate:    r.InvoiceDate,
	}
}

type ClientResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Address  string `json:"address,omitempty"`
	City     string `json:"city,omitempty"`
	Province string `json:"province,omitempty"`
	TaxID    string `json:"tax_id,omitempty"`
}

type ItemResponse struct {
	Description string `json:"description"`
	Price       string `json:"price"`
}

type InvoiceResponse struct {
	ID        int64          `json:"id"`
	Number    string         `json:"number"`
	Code      string         `json:"code"`
	Date      string         `json:"date"`
	Client    ClientResponse `json:"client"`
	Items     []ItemResponse `json:"items"`
	TaxRate   string         `json:"tax_rate"`
	Subtotal  string         `json:"subtotal"`
	TaxAmount string         `json:"tax_amount"`
	Total     string         `json:"total"`
	CreatedAt time.Time      `json:"created_at"`
}

type CreateInvoiceResponse struct {
	Invoice   InvoiceResponse `json:"invoice"`
	Delivered bool            `json:"delivered"`
	Warnings  []string        `json:"warnings"`
}

type InvoiceSummaryResponse struct {
	ID          int64     `json:"id"`
	Number      string    `json:"number"`
	Date        string    `json:"date"`
	ClientID    int64     `json:"client_id"`
	ClientName  string    `json:"client_name"`
	ClientEmail string    `json:"client_email"`
	Total       string    `json:"total"`
	CreatedAt   time.Time `json:"created_at"`
}

type InvoicesResponse struct {
	Invoices   []InvoiceSummaryResponse `json:"invoices"`
	TotalCount int                      `json:"total_count"`
}

type ClientsResponse struct {
	Clients []ClientResponse `json:"clients"`
}

func clientToAPI(c entity.Client) ClientResponse {
	return ClientResponse{
		ID:       c.ID,
		Name:     c.Name,
		Email:    c.Email,
		Address:  c.Address,
		City:     c.City,
		Province: c.Province,
		TaxID:    c.TaxID,
	}
}

func invoiceToAPI(v entity.InvoiceView) InvoiceResponse {
	items := make([]ItemResponse, 0, len(v.Items))
	for _, item := range v.Items {
		items = append(items, ItemResponse{Description: item.Description, Price: item.Price.StringFixed(2)})
	}

	return InvoiceResponse{
		ID:        v.ID,
		Number:    v.Number(),
		Code:      v.Code(),
		Date:      v.FormattedDate(),
		Client:    clientToAPI(v.Client),
		Items:     items,
		TaxRate:   v.TaxRate.String(),
		Subtotal:  v.Subtotal.StringFixed(2),
		TaxAmount: v.TaxAmount.StringFixed(2),
		Total:     v.Total.StringFixed(2),
		CreatedAt: v.CreatedAt,
	}
}

// CreateInvoice creates an invoice, renders it and emails it to the client
// @Summary Create invoice
// @Description Stores the client and the invoice, then renders and emails the document.
// @Description Rendering or delivery problems do not fail the request; they are listed in warnings.
// @Tags invoices
// @Accept json
// @Produce json
// @Param CreateInvoiceRequest body CreateInvoiceRequest true "Invoice creation request"
// @Success 201 {object} CreateInvoiceResponse
// @Failure 400 {object} ErrorResponse "Invalid client, items or date"
// @Failure 401 {object} ErrorResponse "Missing or invalid API key"
// @Failure 500 {object} ErrorResponse "Invoice not created"
// @Router /invoices [post]
// @Security ApiKeyAuth
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateInvoiceRequest

	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		SendJSONErr(ctx, w, http.StatusBadRequest, err, "JSON no válido")
		return
	}

	res, err := h.s.CreateInvoice(ctx, req.toEntity())
	if err != nil {
		switch {
		case errors.Is(err, entity.ErrValidation):
			SendJSONErr(ctx, w, http.StatusBadRequest, err, "Datos de la factura no válidos")
		case errors.Is(err, entity.ErrConfiguration):
			SendJSONErr(ctx, w, http.StatusInternalServerError, err, "Configuración no válida")
		default:
			SendJSONErr(ctx, w, http.StatusInternalServerError, err, "No se pudo crear la factura")
		}

		return
	}

	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	SendJSON(ctx, w, http.StatusCreated, CreateInvoiceResponse{
		Invoice:   invoiceToAPI(res.Invoice),
		Delivered: res.Delivered,
		Warnings:  warnings,
	})
}

// Invoice returns an invoice with its client
// @Summary Get invoice
// @Tags invoices
// @Produce json
// @Param id path int true "Invoice id"
// @Success 200 {object} InvoiceResponse
// @Failure 400 {object} ErrorResponse "Invalid id"
// @Failure 404 {object} ErrorResponse "Invoice not found"
// @Failure 500 {object} ErrorResponse "Failed to get invoice"
// @Router /invoices/{id} [get]
// @Security ApiKeyAuth
func (h *Handler) Invoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := invoiceID(r)
	if err != nil {
		SendJSONErr(ctx, w, http.StatusBadRequest, err, "id no válido")
		return
	}

	view, err := h.s.Invoice(ctx, id)
	if err != nil {
		sendInvoiceErr(ctx, w, err)
		return
	}

	SendJSON(ctx, w, http.StatusOK, invoiceToAPI(view))
}

// InvoicePDF downloads the invoice document
// @Summary Download invoice PDF
// @Description Returns the cached document, rendering it again when it is missing.
// @Tags invoices
// @Produce application/pdf
// @Param id path int true "Invoice id"
// @Success 200 {file} file
// @Failure 400 {object} ErrorResponse "Invalid id"
// @Failure 404 {object} ErrorResponse "Invoice not found"
// @Failure 500 {object} ErrorResponse "Failed to render invoice"
// @Router /invoices/{id}/pdf [get]
// @Security ApiKeyAuth
func (h *Handler) InvoicePDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := invoiceID(r)
	if err != nil {
		SendJSONErr(ctx, w, http.StatusBadRequest, err, "id no válido")
		return
	}

	doc, err := h.s.Document(ctx, id)
	if err != nil {
		sendInvoiceErr(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName()))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.WriteHeader(http.StatusOK)

	_, _ = w.Write(doc.Data)
}

func sendInvoiceErr(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		SendJSONErr(ctx, w, http.StatusNotFound, err, "Factura no encontrada")
	case errors.Is(err, entity.ErrValidation):
		SendJSONErr(ctx, w, http.StatusBadRequest, err, "id no válido")
	default:
		SendJSONErr(ctx, w, http.StatusInternalServerError, err, "No se pudo obtener la factura")
	}
}

func invoiceID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, err
	}

	if id <= 0 {
		return 0, fmt.Errorf("%w: invoice id must be positive", entity.ErrValidation)
	}

	return id, nil
}

// Invoices lists invoices
// @Summary List invoices
// @Tags invoices
// @Produce json
// @Param page query int false "Page, starting at 1"
// @Param limit query int false "Page size, at most 100"
// @Param sortBy query string false "id, date or total"
// @Param orderBy query string false "asc or desc"
// @Param email query string false "Client email"
// @Param from query string false "First date, YYYY-MM-DD"
// @Param to query string false "Last date, YYYY-MM-DD"
// @Success 200 {object} InvoicesResponse
// @Failure 400 {object} ErrorResponse "Invalid filter"
// @Failure 500 {object} ErrorResponse "Failed to list invoices"
// @Router /invoices [get]
// @Security ApiKeyAuth
func (h *Handler) Invoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseInvoiceFilter(r.URL.Query())
	if err != nil {
		SendJSONErr(ctx, w, http.StatusBadRequest, err, "Filtro no válido")
		return
	}

	invoices, total, err := h.s.Invoices(ctx, filter)
	if err != nil {
		if errors.Is(err, entity.ErrValidation) {
			SendJSONErr(ctx, w, http.StatusBadRequest, err, "Filtro no válido")
			return
		}

		SendJSONErr(ctx, w, http.StatusInternalServerError, err, "No se pudieron obtener las facturas")

		return
	}

	res := InvoicesResponse{
		Invoices:   make([]InvoiceSummaryResponse, 0, len(invoices)),
		TotalCount: total,
	}

	for _, inv := range invoices {
		res.Invoices = append(res.Invoices, InvoiceSummaryResponse{
			ID:          inv.ID,
			Number:      entity.Invoice{ID: inv.ID}.Number(),
			Date:        inv.Date.Format(time.DateOnly),
			ClientID:    inv.ClientID,
			ClientName:  inv.ClientName,
			ClientEmail: inv.ClientEmail,
			Total:       inv.Total.StringFixed(2),
			CreatedAt:   inv.CreatedAt,
		})
	}

	SendJSON(ctx, w, http.StatusOK, res)
}

func parseInvoiceFilter(q url.Values) (entity.InvoiceFilter, error) {
	var (
		filter entity.InvoiceFilter
		err    error
	)

	if s := q.Get("page"); s != "" {
		filter.Page, err = strconv.ParseUint(s, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid page: %w", err)
		}
	}

	if s := q.Get("limit"); s != "" {
		filter.Limit, err = strconv.ParseUint(s, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("invalid limit: %w", err)
		}
	}

	filter.SortBy = entity.InvoiceSortCol(q.Get("sortBy"))
	filter.OrderBy = entity.OrderByCol(q.Get("orderBy"))

	if s := q.Get("email"); s != "" {
		filter.ClientEmail = &s
	}

	filter.DateFrom, err = parseDate(q.Get("from"))
	if err != nil {
		return filter, fmt.Errorf("invalid from: %w", err)
	}

	filter.DateTo, err = parseDate(q.Get("to"))
	if err != nil {
		return filter, fmt.Errorf("invalid to: %w", err)
	}

	return filter, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil //nolint:nilnil
	}

	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// Clients lists known clients for autofill
// @Summary List clients
// @Tags clients
// @Produce json
// @Param search query string false "Part of the name or email"
// @Param limit query int false "Maximum number of clients"
// @Success 200 {object} ClientsResponse
// @Failure 400 {object} ErrorResponse "Invalid limit"
// @Failure 500 {object} ErrorResponse "Failed to list clients"
// @Router /clients [get]
// @Security ApiKeyAuth
func (h *Handler) Clients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := entity.ClientFilter{Search: r.URL.Query().Get("search")}

	if s := r.URL.Query().Get("limit"); s != "" {
		limit, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			SendJSONErr(ctx, w, http.StatusBadRequest, err, "Límite no válido")
			return
		}

		filter.Limit = limit
	}

	clients, err := h.s.Clients(ctx, filter)
	if err != nil {
		SendJSONErr(ctx, w, http.StatusInternalServerError, err, "No se pudieron obtener los clientes")
		return
	}

	res := ClientsResponse{Clients: make([]ClientResponse, 0, len(clients))}
	for _, c := range clients {
		res.Clients = append(res.Clients, clientToAPI(c))
	}

	SendJSON(ctx, w, http.StatusOK, res)
}

// HealthHandler - returns service health status.
// @Summary Health check
// @Description Health check
// @Tags health
// @Produce text/plain
// @Success 200 {string} string "OK"
// @Router /health [get]
func (h *Handler) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("OK\n"))
}
