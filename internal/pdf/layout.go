package pdf

// pt converts typographic points to millimetres.
const pt = 25.4 / 72

type Labels struct {
	Title         string
	Number        string
	Date          string
	Code          string
	TaxID         string
	ClientHeading string
	ClientTaxID   string
	Description   string
	Amount        string
	Subtotal      string
	Tax           string // Printed as "<Tax> (<rate>%):".
	Total         string
}

// Layout holds page geometry in millimetres, measured from the top left corner.
type Layout struct {
	PageWidth       float64
	PageHeight      float64
	Margin          float64
	BottomThreshold float64 // A new page starts before a row placed lower than PageHeight-BottomThreshold.
	FooterOffset    float64 // Distance of the footer rule from the bottom edge.
	LogoWidth       float64
	LogoHeight      float64
	RowHeight       float64
	DescriptionMax  int // In runes; longer descriptions are cut and end with "...".
	Currency        string
	Labels          Labels
}

func DefaultLayout() Layout {
	return Layout{
		PageWidth:       210,
		PageHeight:      297,
		Margin:          20,
		BottomThreshold: 60,
		FooterOffset:    30,
		LogoWidth:       60,
		LogoHeight:      35,
		RowHeight:       15 * pt,
		DescriptionMax:  70,
		Currency:        "€",
		Labels: Labels{
			Title:         "FACTURA",
			Number:        "Número:",
			Date:          "Fecha:",
			Code:          "Código:",
			TaxID:         "NIF:",
			ClientHeading: "DATOS DEL CLIENTE:",
			ClientTaxID:   "CIF/NIF:",
			Description:   "Descripción",
			Amount:        "Importe",
			Subtotal:      "Subtotal:",
			Tax:           "IVA",
			Total:         "TOTAL A PAGAR:",
		},
	}
}

func (l Layout) right() float64 {
	return l.PageWidth - l.Margin
}

// continuationY is where rows resume on a new page.
func (l Layout) continuationY() float64 {
	return l.Margin + 20*pt
}

type placement struct {
	Page int // Zero-based, relative to the page holding the first row.
	Y    float64
}

// placeRows positions n item rows starting at startY. Only rows are checked against the
// bottom threshold; whatever follows the last row stays on its page.
func placeRows(startY float64, n int, l Layout) []placement {
	rows := make([]placement, 0, n)

	page := 0
	y := startY
	limit := l.PageHeight - l.BottomThreshold

	for i := 0; i < n; i++ {
		if y > limit {
			page++
			y = l.continuationY()
		}

		rows = append(rows, placement{Page: page, Y: y})
		y += l.RowHeight
	}

	return rows
}
