package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype/zeronull"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vicentsargues/FACTURAFACIL/internal/entity"
)

type Repository struct {
	db *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{
		db: pool,
	}
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ResolveClient returns the id of the client with the given email, creating it if needed.
// Details of an existing client are overwritten.
func (r *Repository) ResolveClient(ctx context.Context, c entity.Client) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}

	defer tx.Rollback(ctx) //nolint:errcheck

	id, err := upsertClient(ctx, tx, c)
	if err != nil {
		return 0, err
	}

	return id, tx.Commit(ctx)
}

func upsertClient(ctx context.Context, q querier, c entity.Client) (int64, error) {
	var id int64

	err := q.QueryRow(ctx, upsertClientQuery,
		c.Name,
		c.Email,
		zeronull.Text(c.Address),
		zeronull.Text(c.City),
		zeronull.Text(c.Province),
		zeronull.Text(c.TaxID),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert client: %w", err)
	}

	return id, nil
}

// CreateInvoice stores the client, the invoice and its items in one transaction.
// The returned invoice carries the ids and the creation time assigned by the database.
func (r *Repository) CreateInvoice(ctx context.Context, c entity.Client, inv entity.Invoice) (entity.Invoice, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return entity.Invoice{}, err
	}

	defer tx.Rollback(ctx) //nolint:errcheck

	inv.ClientID, err = upsertClient(ctx, tx, c)
	if err != nil {
		return entity.Invoice{}, err
	}

	const q = `
	INSERT INTO invoices (client_id, date, tax_rate, subtotal, tax_amount, total)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, created_at
	`

	err = tx.QueryRow(ctx, q,
		inv.ClientID,
		inv.Date,
		inv.TaxRate,
		inv.Subtotal,
		inv.TaxAmount,
		inv.Total,
	).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return entity.Invoice{}, fmt.Errorf("insert invoice: %w", err)
	}

	batch := &pgx.Batch{}

	for _, item := range inv.Items {
		batch.Queue(`INSERT INTO invoice_items (invoice_id, description, price) VALUES ($1, $2, $3)`,
			inv.ID, item.Description, item.Price)
	}

	br := tx.SendBatch(ctx, batch)

	for range inv.Items {
		_, err = br.Exec()
		if err != nil {
			br.Close()
			return entity.Invoice{}, fmt.Errorf("insert invoice item: %w", err)
		}
	}

	err = br.Close()
	if err != nil {
		return entity.Invoice{}, fmt.Errorf("insert invoice items: %w", err)
	}

	err = tx.Commit(ctx)
	if err != nil {
		return entity.Invoice{}, err
	}

	return inv, nil
}

// Invoice returns the invoice joined with the current state of its client.
func (r *Repository) Invoice(ctx context.Context, id int64) (entity.InvoiceView, error) {
	q := selectInvoiceView + " WHERE i.id = $1"

	var v entity.InvoiceView

	err := r.db.QueryRow(ctx, q, id).Scan(
		&v.ID,
		&v.ClientID,
		&v.Date,
		&v.TaxRate,
		&v.Subtotal,
		&v.TaxAmount,
		&v.Total,
		&v.CreatedAt,
		&v.Client.ID,
		&v.Client.Name,
		&v.Client.Email,
		(*zeronull.Text)(&v.Client.Address),
		(*zeronull.Text)(&v.Client.City),
		(*zeronull.Text)(&v.Client.Province),
		(*zeronull.Text)(&v.Client.TaxID),
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.InvoiceView{}, entity.ErrNotFound
		}

		return entity.InvoiceView{}, err
	}

	v.Items, err = r.invoiceItems(ctx, id)
	if err != nil {
		return entity.InvoiceView{}, err
	}

	return v, nil
}

func (r *Repository) invoiceItems(ctx context.Context, invoiceID int64) ([]entity.LineItem, error) {
	const q = `SELECT description, price FROM invoice_items WHERE invoice_id = $1 ORDER BY id`

	rows, err := r.db.Query(ctx, q, invoiceID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var items []entity.LineItem

	for rows.Next() {
		var item entity.LineItem

		err = rows.Scan(&item.Description, &item.Price)
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *Repository) Clients(ctx context.Context, f entity.ClientFilter) ([]entity.Client, error) {
	stmt := sq.Select(
		"id",
		"name",
		"email",
		"address",
		"city",
		"province",
		"tax_id",
	).From("clients").OrderBy("name", "id").PlaceholderFormat(sq.Dollar)

	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + s + "%"
		stmt = stmt.Where(sq.Or{sq.ILike{"name": pattern}, sq.ILike{"email": pattern}})
	}

	if f.Limit > 0 {
		stmt = stmt.Limit(f.Limit)
	}

	sql, args, err := stmt.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	clients := make([]entity.Client, 0, f.Limit)

	for rows.Next() {
		var c entity.Client

		err = rows.Scan(
			&c.ID,
			&c.Name,
			&c.Email,
			(*zeronull.Text)(&c.Address),
			(*zeronull.Text)(&c.City),
			(*zeronull.Text)(&c.Province),
			(*zeronull.Text)(&c.TaxID),
		)
		if err != nil {
			return nil, err
		}

		clients = append(clients, c)
	}

	return clients, rows.Err()
}

func (r *Repository) Invoices(ctx context.Context, f entity.InvoiceFilter) ([]entity.InvoiceSummary, int, error) {
	stmt := sq.Select(
		"i.id",
		"i.date",
		"i.client_id",
		"c.name",
		"c.email",
		"i.total",
		"i.created_at",
		"COUNT(*) OVER() AS total_count",
	).From("invoices i").Join("clients c ON c.id = i.client_id").PlaceholderFormat(sq.Dollar)

	stmt = applyInvoiceFilter(stmt, f).
		Limit(f.Limit).
		Offset(f.Page*f.Limit - f.Limit).
		OrderBy(fmt.Sprintf("i.%s %s", f.SortBy, f.OrderBy), "i.id")

	sql, args, err := stmt.ToSql()
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}

	defer rows.Close()

	invoices := make([]entity.InvoiceSummary, 0, f.Limit)

	var totalCount int

	for rows.Next() {
		var s entity.InvoiceSummary

		err = rows.Scan(
			&s.ID,
			&s.Date,
			&s.ClientID,
			&s.ClientName,
			&s.ClientEmail,
			&s.Total,
			&s.CreatedAt,
			&totalCount,
		)
		if err != nil {
			return nil, 0, err
		}

		invoices = append(invoices, s)
	}

	return invoices, totalCount, rows.Err()
}

func applyInvoiceFilter(stmt sq.SelectBuilder, f entity.InvoiceFilter) sq.SelectBuilder {
	if f.ClientEmail != nil {
		stmt = stmt.Where(sq.Eq{"c.email": *f.ClientEmail})
	}

	if f.DateFrom != nil {
		stmt = stmt.Where(sq.GtOrEq{"i.date": *f.DateFrom})
	}

	if f.DateTo != nil {
		stmt = stmt.Where(sq.LtOrEq{"i.date": *f.DateTo})
	}

	return stmt
}

// InvoiceIDsSince lists invoices created at or after since, oldest first.
func (r *Repository) InvoiceIDsSince(ctx context.Context, since time.Time) ([]int64, error) {
	const q = `SELECT id FROM invoices WHERE created_at >= $1 ORDER BY id`

	rows, err := r.db.Query(ctx, q, since)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, pgx.RowTo[int64])
}
