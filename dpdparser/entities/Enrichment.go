package entities

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MonographDateLayout is the layout of monograph dates on the product page.
const MonographDateLayout = "2006-01-02"

// Enrichment holds the monograph metadata of a product. It is always copied
// as a whole, so a product never ends up partially enriched.
type Enrichment struct {
	CurrentStatus         string       `json:"current_status"`
	ProductMonograph      string       `json:"product_monograph"`
	MonographDate         string       `json:"monograph_date"`
	MonographDateParsable ParsableDate `json:"monograph_date_parsable"`
	OriginalMarketDate    string       `json:"original_market_date"`
}

// IsZero reports whether no enrichment was ever applied.
func (e Enrichment) IsZero() bool {
	return e == Enrichment{}
}

// ParsableDate is a structured date that serializes to the empty string when
// the source text could not be parsed.
type ParsableDate struct {
	Time  time.Time
	Valid bool
}

// ParseMonographDate parses a YYYY-MM-DD date.
func ParseMonographDate(s string) (ParsableDate, error) {
	t, err := time.Parse(MonographDateLayout, strings.TrimSpace(s))
	if err != nil {
		return ParsableDate{}, fmt.Errorf("invalid monograph date %q: %w", s, err)
	}
	return ParsableDate{Time: t, Valid: true}, nil
}

// String returns the text form used in snapshot artifacts.
func (d ParsableDate) String() string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(time.DateTime)
}

func (d ParsableDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// ParseDateText reads the text form of a structured date. It accepts the
// empty sentinel, a bare date, the artifact text form and RFC 3339; anything
// else yields the sentinel.
func ParseDateText(s string) ParsableDate {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.DateTime, MonographDateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return ParsableDate{Time: t, Valid: true}
		}
	}
	return ParsableDate{}
}

func (d *ParsableDate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*d = ParsableDate{}
		return nil
	}
	*d = ParseDateText(s)
	return nil
}
