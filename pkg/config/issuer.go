package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Issuer struct {
	Name        string `json:"name"`
	TaxID       string `json:"tax_id"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Province    string `json:"province"`
	LogoPath    string `json:"logo_path"`
	PaymentNote string `json:"payment_note"`
	BankAccount string `json:"bank_account"`
}

type issuerFile struct {
	Company *Issuer `json:"company"`
}

// DefaultIssuer is used when no issuer file exists.
func DefaultIssuer() Issuer {
	return Issuer{
		Name:        "FACTURAFACIL",
		Address:     "C/Protectora, 17",
		City:        "46320 SINARCAS",
		Province:    "(VALENCIA)",
		LogoPath:    "logo.jpg",
		PaymentNote: "Nº cta. para realizar la transferencia:",
	}
}

// LoadIssuer reads the issuer profile from a JSON file shaped {"company": {...}}.
// A missing file yields DefaultIssuer; an unreadable or malformed one is an error.
// A relative logo path is resolved against the directory of the file.
func LoadIssuer(path string) (Issuer, error) {
	issuer, err := readIssuer(path)
	if err != nil {
		return Issuer{}, err
	}

	issuer.LogoPath = resolveLogoPath(filepath.Dir(path), issuer.LogoPath)

	return issuer, nil
}

func resolveLogoPath(dir, logo string) string {
	logo = strings.TrimSpace(logo)

	if logo == "" || filepath.IsAbs(logo) ||
		strings.HasPrefix(logo, "http://") || strings.HasPrefix(logo, "https://") {
		return logo
	}

	return filepath.Join(dir, logo)
}

func readIssuer(path string) (Issuer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultIssuer(), nil
		}

		return Issuer{}, fmt.Errorf("read issuer file: %w", err)
	}

	var f issuerFile

	err = json.Unmarshal(b, &f)
	if err != nil {
		return Issuer{}, fmt.Errorf("parse issuer file: %w", err)
	}

	if f.Company == nil {
		return Issuer{}, fmt.Errorf("parse issuer file: %q has no company section", path)
	}

	if f.Company.PaymentNote == "" {
		f.Company.PaymentNote = DefaultIssuer().PaymentNote
	}

	return *f.Company, nil
}
