package parser

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

const (
	DefaultMinYear = 2020
	DefaultMaxYear = 2030
)

// Layouts tried in order. Numeric fields accept one or two digits.
var dateLayouts = []string{
	"2-Jan-2006",
	"2006-1-2",
	"2/1/2006",
	"2-1-2006",
	"2/1/06",
	"2-1-06",
	"2006/1/2",
}

var spanishMonths = map[string]string{
	"ene": "Jan", "feb": "Feb", "mar": "Mar", "abr": "Apr",
	"may": "May", "jun": "Jun", "jul": "Jul", "ago": "Aug",
	"sep": "Sep", "oct": "Oct", "nov": "Nov", "dic": "Dec",
}

var (
	namedMonthRe = regexp.MustCompile(`^(\d{1,2})-([A-Za-z]{3})-(\d{4})$`)
	numericRe    = regexp.MustCompile(`^\d{1,2}[/-]\d{1,2}[/-](\d{2,4})$`)
)

// DateResult is the outcome of parsing one date cell. Raw keeps the input
// when it could not be parsed.
type DateResult struct {
	Date     civil.Date
	Valid    bool
	Rejected bool // parsed but outside the accepted year range
	Raw      string
}

// DateParser parses statement dates and rejects years outside a window,
// which catches spreadsheet corruption such as 4/01/1901.
type DateParser struct {
	minYear int
	maxYear int
	logger  *slog.Logger
}

// NewDateParser creates a parser; zero bounds fall back to the defaults.
func NewDateParser(minYear, maxYear int, logger *slog.Logger) *DateParser {
	if minYear == 0 {
		minYear = DefaultMinYear
	}
	if maxYear == 0 {
		maxYear = DefaultMaxYear
	}
	return &DateParser{minYear: minYear, maxYear: maxYear, logger: logger}
}

// Parse reads s. Empty input is invalid without logging.
func (p *DateParser) Parse(s string) DateResult {
	s = strings.TrimSpace(s)
	if s == "" {
		return DateResult{}
	}

	// Two-digit years pivot at 50, not at Go's 69.
	pivoted := 0
	if m := numericRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		if year < 100 {
			if year < 50 {
				year += 2000
			} else {
				year += 1900
			}
			pivoted = year
		}
		if !p.inRange(year) {
			return p.reject(s, year)
		}
	}

	candidate := translateMonth(s)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, candidate)
		if err != nil {
			continue
		}
		d := civil.DateOf(t)
		if pivoted != 0 {
			d.Year = pivoted
		}
		if !p.inRange(d.Year) {
			return p.reject(s, d.Year)
		}
		return DateResult{Date: d, Valid: true}
	}

	p.logger.Warn("could not parse date", slog.String("value", s))
	return DateResult{Raw: s}
}

func (p *DateParser) inRange(year int) bool {
	return year >= p.minYear && year <= p.maxYear
}

func (p *DateParser) reject(s string, year int) DateResult {
	p.logger.Warn("rejecting date with suspicious year",
		slog.String("value", s),
		slog.Int("year", year),
	)
	return DateResult{Rejected: true}
}

// translateMonth rewrites a Spanish month abbreviation in 12-jun-2025 style
// dates to English.
func translateMonth(s string) string {
	m := namedMonthRe.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	en, ok := spanishMonths[strings.ToLower(m[2])]
	if !ok {
		return s
	}
	return m[1] + "-" + en + "-" + m[3]
}

// FormatSpanish renders d as 12-jun-2025.
func FormatSpanish(d civil.Date) string {
	return strconv.Itoa(d.Day) + "-" + spanishMonthOf(d.Month) + "-" + strconv.Itoa(d.Year)
}

func spanishMonthOf(m time.Month) string {
	names := [...]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sep", "oct", "nov", "dic"}
	if m < time.January || m > time.December {
		return ""
	}
	return names[m-1]
}
