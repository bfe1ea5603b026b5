package service

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vicentsargues/FACTURAFACIL/internal/entity"
)

var priceRe = regexp.MustCompile(`^(\d+([.,]\d*)?|[.,]\d+)$`)

// NormalizeClient trims every field and lower-cases the email, which is the client natural key.
func NormalizeClient(c entity.Client) (entity.Client, error) {
	c = entity.Client{
		ID:       c.ID,
		Name:     strings.TrimSpace(c.Name),
		Email:    strings.ToLower(strings.TrimSpace(c.Email)),
		Address:  strings.TrimSpace(c.Address),
		City:     strings.TrimSpace(c.City),
		Province: strings.TrimSpace(c.Province),
		TaxID:    strings.TrimSpace(c.TaxID),
	}

	if c.Name == "" {
		return entity.Client{}, fmt.Errorf("%w: client name is required", entity.ErrValidation)
	}

	if c.Email == "" {
		return entity.Client{}, fmt.Errorf("%w: client email is required", entity.ErrValidation)
	}

	return c, nil
}

func clientFromRequest(req entity.CreateInvoiceRequest) entity.Client {
	return entity.Client{
		Name:     req.ClientName,
		Email:    req.ClientEmail,
		Address:  req.ClientAddress,
		City:     req.ClientCity,
		Province: req.ClientProvince,
		TaxID:    req.ClientTaxID,
	}
}

// ParseItems turns raw form rows into line items. Rows with a blank price are skipped.
func ParseItems(raw []entity.RawLineItem) ([]entity.LineItem, error) {
	items := make([]entity.LineItem, 0, len(raw))

	for i, r := range raw {
		if strings.TrimSpace(r.Price) == "" {
			continue
		}

		price, err := ParsePrice(r.Price)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}

		desc := strings.TrimSpace(r.Description)
		if desc == "" {
			desc = entity.DefaultItemDescription
		}

		items = append(items, entity.LineItem{Description: desc, Price: price})
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no billable items", entity.ErrValidation)
	}

	return items, nil
}

// ParsePrice accepts a non-negative amount with either "." or "," as the decimal separator.
// The amount is rounded half away from zero to cents, the precision stored in the ledger.
func ParsePrice(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)

	if !priceRe.MatchString(s) {
		return decimal.Decimal{}, fmt.Errorf("%w: invalid price %q", entity.ErrValidation, s)
	}

	n := strings.TrimSuffix(strings.Replace(s, ",", ".", 1), ".")
	if strings.HasPrefix(n, ".") {
		n = "0" + n
	}

	price, err := decimal.NewFromString(n)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: invalid price %q", entity.ErrValidation, s)
	}

	return price.Round(moneyPlaces), nil
}

// ParseInvoiceDate parses an optional YYYY-MM-DD date. An empty value means today.
func ParseInvoiceDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}

	date, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid invoice date %q", entity.ErrValidation, s)
	}

	return date, nil
}

const (
	defaultInvoicesLimit = 20
	maxInvoicesLimit     = 100
	defaultClientsLimit  = 100
	maxClientsLimit      = 500
)

func validateInvoiceFilter(f entity.InvoiceFilter) (entity.InvoiceFilter, error) {
	if f.Page == 0 {
		f.Page = 1
	}

	if f.Limit == 0 {
		f.Limit = defaultInvoicesLimit
	}

	if f.Limit > maxInvoicesLimit {
		return f, fmt.Errorf("%w: limit must not exceed %d", entity.ErrValidation, maxInvoicesLimit)
	}

	if f.SortBy == "" {
		f.SortBy = entity.SortByID
	}

	if !f.SortBy.IsValid() {
		return f, fmt.Errorf("%w: invalid sortBy %q", entity.ErrValidation, f.SortBy)
	}

	if f.OrderBy == "" {
		f.OrderBy = entity.DESC
	}

	if !f.OrderBy.IsValid() {
		return f, fmt.Errorf("%w: invalid orderBy %q", entity.ErrValidation, f.OrderBy)
	}

	if f.ClientEmail != nil {
		email := strings.ToLower(strings.TrimSpace(*f.ClientEmail))
		f.ClientEmail = &email
	}

	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return f, fmt.Errorf("%w: date range is empty", entity.ErrValidation)
	}

	return f, nil
}

func validateClientFilter(f entity.ClientFilter) entity.ClientFilter {
	f.Search = strings.TrimSpace(f.Search)

	if f.Limit == 0 {
		f.Limit = defaultClientsLimit
	}

	if f.Limit > maxClientsLimit {
		f.Limit = maxClientsLimit
	}

	return f
}
