package entity

import "fmt"

// Document is a rendered invoice. It is a projection of ledger data and can be rebuilt at any time.
type Document struct {
	InvoiceID int64
	Data      []byte
	Pages     int // Zero when the document was served from the cache.
}

// FileName is the name under which the document is downloaded or attached.
func (d Document) FileName() string {
	return fmt.Sprintf("factura_%d.pdf", d.InvoiceID)
}
