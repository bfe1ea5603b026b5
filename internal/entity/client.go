package entity

import "strings"

type Client struct {
	ID       int64
	Name     string
	Email    string // Natural key, stored trimmed and lower-cased.
	Address  string
	City     string
	Province string
	TaxID    string
}

// CityLine joins city and province with a space, skipping empty parts.
func (c Client) CityLine() string {
	return joinNonEmpty(c.City, c.Province)
}

type ClientFilter struct {
	Search string
	Limit  uint64
}

func joinNonEmpty(parts ...string) string {
	res := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			res = append(res, p)
		}
	}

	return strings.Join(res, " ")
}
