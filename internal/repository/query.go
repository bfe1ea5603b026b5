package repository

const (
	upsertClientQuery = `
	INSERT INTO clients (name, email, address, city, province, tax_id)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (email) DO UPDATE SET
		name = EXCLUDED.name,
		address = EXCLUDED.address,
		city = EXCLUDED.city,
		province = EXCLUDED.province,
		tax_id = EXCLUDED.tax_id
	RETURNING id`

	selectInvoiceView = `SELECT
		i.id,
		i.client_id,
		i.date,
		i.tax_rate,
		i.subtotal,
		i.tax_amount,
		i.total,
		i.created_at,
		c.id,
		c.name,
		c.email,
		c.address,
		c.city,
		c.province,
		c.tax_id
	FROM invoices i
	JOIN clients c ON c.id = i.client_id`
)
