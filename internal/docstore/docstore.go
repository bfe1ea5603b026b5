package docstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vicentsargues/FACTURAFACIL/internal/entity"
)

// Store keeps rendered documents as invoice_<id>.pdf files in one directory.
type Store struct {
	dir string
}

// New creates the directory if needed.
func New(dir string) (*Store, error) {
	err := os.MkdirAll(dir, 0o750)
	if err != nil {
		return nil, fmt.Errorf("create documents dir: %w", err)
	}

	return &Store{dir: dir}, nil
}

func (s *Store) path(invoiceID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("invoice_%d.pdf", invoiceID))
}

// Save replaces the document atomically, so readers never see a partial file.
func (s *Store) Save(ctx context.Context, invoiceID int64, data []byte) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(s.dir, fmt.Sprintf(".invoice_%d_*.tmp", invoiceID))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tmp := f.Name()

	_, err = f.Write(data)
	if err == nil {
		err = f.Sync()
	}

	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}

	if err == nil {
		err = os.Rename(tmp, s.path(invoiceID))
	}

	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write document %d: %w", invoiceID, err)
	}

	return nil
}

// Load returns entity.ErrNotFound when no document is cached for the invoice.
func (s *Store) Load(ctx context.Context, invoiceID int64) ([]byte, error) {
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(invoiceID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, entity.ErrNotFound
		}

		return nil, fmt.Errorf("read document %d: %w", invoiceID, err)
	}

	return data, nil
}

func (s *Store) Exists(ctx context.Context, invoiceID int64) (bool, error) {
	err := ctx.Err()
	if err != nil {
		return false, err
	}

	_, err = os.Stat(s.path(invoiceID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}
