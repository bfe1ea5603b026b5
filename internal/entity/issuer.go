package entity

// IssuerProfile is the business that issues every invoice of a deployment.
type IssuerProfile struct {
	Name        string
	TaxID       string
	Address     string
	City        string
	Province    string
	LogoRef     string // File path or http(s) URL.
	PaymentNote string // Footer label printed above BankAccount.
	BankAccount string
}

func (p IssuerProfile) CityLine() string {
	return joinNonEmpty(p.City, p.Province)
}

// Image is a decoded-ready picture such as the issuer logo. Type is "png", "jpg" or "gif".
type Image struct {
	Data []byte
	Type string
}
