package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultItemDescription replaces a blank line item description.
const DefaultItemDescription = "-"

type LineItem struct {
	Description string
	Price       decimal.Decimal
}

type Totals struct {
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// Invoice amounts are computed once at creation and never recomputed.
type Invoice struct {
	ID        int64 // Filled by DB.
	ClientID  int64 // Filled by DB.
	Date      time.Time
	TaxRate   decimal.Decimal
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
	Items     []LineItem
	CreatedAt time.Time
}

// Number returns the invoice id zero-padded to 5 digits.
func (i Invoice) Number() string {
	return fmt.Sprintf("%05d", i.ID)
}

// Code returns "number/year" where year comes from the invoice date.
func (i Invoice) Code() string {
	return fmt.Sprintf("%s/%04d", i.Number(), i.Date.Year())
}

func (i Invoice) FormattedDate() string {
	return i.Date.Format(time.DateOnly)
}

// InvoiceView is an invoice joined with the current state of its client.
type InvoiceView struct {
	Invoice
	Client Client
}

type InvoiceSummary struct {
	ID          int64
	Date        time.Time
	ClientID    int64
	ClientName  string
	ClientEmail string
	Total       decimal.Decimal
	CreatedAt   time.Time
}

type RawLineItem struct {
	Description string
	Price       string
}

type CreateInvoiceRequest struct {
	ClientName     string
	ClientEmail    string
	ClientAddress  string
	ClientCity     string
	ClientProvince string
	ClientTaxID    string
	Items          []RawLineItem
	InvoiceDate    string // Optional, YYYY-MM-DD.
}

type CreateInvoiceResult struct {
	Invoice   InvoiceView
	Delivered bool
	Warnings  []string
}

type InvoiceSortCol string

func (s InvoiceSortCol) String() string {
	return string(s)
}

const (
	SortByID    InvoiceSortCol = "id"
	SortByDate  InvoiceSortCol = "date"
	SortByTotal InvoiceSortCol = "total"
)

func (s InvoiceSortCol) IsValid() bool {
	switch s {
	case SortByID, SortByDate, SortByTotal:
		return true
	}

	return false
}

type OrderByCol string

func (o OrderByCol) String() string {
	return string(o)
}

const (
	DESC OrderByCol = "desc"
	ASC  OrderByCol = "asc"
)

func (o OrderByCol) IsValid() bool {
	switch o {
	case DESC, ASC:
		return true
	}

	return false
}

type InvoiceFilter struct {
	ClientEmail *string
	DateFrom    *time.Time
	DateTo      *time.Time
	Page        uint64
	Limit       uint64
	SortBy      InvoiceSortCol
	OrderBy     OrderByCol
}
