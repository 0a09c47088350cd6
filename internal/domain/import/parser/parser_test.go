package parser

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ============================================================================
// Column mapping
// ============================================================================

func TestMapColumns_Bajio(t *testing.T) {
	headers := []string{"#", "Fecha Movimiento", "Hora", "Recibo", "Descripción", "Cargos", "Abonos", "Saldo"}
	m := MapColumns(headers)

	assert.Equal(t, 0, m[ColIndex])
	assert.Equal(t, 1, m[ColDate])
	assert.Equal(t, 2, m[ColTime])
	assert.Equal(t, 3, m[ColReceipt])
	assert.Equal(t, 4, m[ColDescription])
	assert.Equal(t, 5, m[ColDebit])
	assert.Equal(t, 6, m[ColCredit])
	assert.Equal(t, 7, m[ColBalance])
	assert.False(t, m.Has(ColTrackingKey))
}

func TestMapColumns_Variants(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   Column
	}{
		{"referencia", "Referencia Numérica", ColReceipt},
		{"folio", "FOLIO", ColReceipt},
		{"concepto", "Concepto", ColDescription},
		{"detalle", "Detalle del movimiento", ColDescription},
		{"deposito", "Depósitos", ColCredit},
		{"deposito plain", "deposito", ColCredit},
		{"tracking", "Clave de Rastreo", ColTrackingKey},
		{"fecha wins over hora", "Fecha y hora", ColDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := MapColumns([]string{"otro", tt.header})
			assert.Equal(t, 1, m[tt.want])
		})
	}
}

func TestMapColumns_FirstHeaderWins(t *testing.T) {
	m := MapColumns([]string{"Fecha Operación", "Fecha Liquidación", "Descripción"})
	assert.Equal(t, 0, m[ColDate])
	assert.Equal(t, 2, m[ColDescription])
}

func TestColumnMap_Value(t *testing.T) {
	m := MapColumns([]string{"Fecha", "Descripción", "Cargo"})
	row := []string{" 15/01/2024 ", "PAGO"}

	assert.Equal(t, "15/01/2024", m.Value(row, ColDate))
	assert.Equal(t, "", m.Value(row, ColDebit), "short row")
	assert.Equal(t, "", m.Value(row, ColBalance), "missing column")
}

func TestValidateColumns(t *testing.T) {
	t.Run("bajio export is valid", func(t *testing.T) {
		v := ValidateColumns([]string{"#", "Fecha Movimiento", "Hora", "Recibo", "Descripción", "Cargos", "Abonos", "Saldo"})
		assert.True(t, v.Valid)
		assert.Empty(t, v.Missing)
		assert.Empty(t, v.Warnings)
	})

	t.Run("missing required columns", func(t *testing.T) {
		v := ValidateColumns([]string{"Fecha", "Concepto", "Importe"})
		assert.False(t, v.Valid)
		assert.Equal(t, []string{"Cargo", "Abono"}, v.Missing)
		assert.Equal(t, []string{"missing optional column Saldo"}, v.Warnings)
	})
}

// ============================================================================
// Amounts
// ============================================================================

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1,500.00", "1500"},
		{"$2,345.67", "2345.67"},
		{" 100.5 ", "100.5"},
		{"-75.25", "75.25"},
		{"", "0"},
		{"N/A", "0"},
		{"12.3.4", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseAmount(tt.input)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

// ============================================================================
// Dates
// ============================================================================

func TestDateParser_Parse(t *testing.T) {
	p := NewDateParser(0, 0, discardLogger())
	jan15 := civil.Date{Year: 2024, Month: time.January, Day: 15}

	tests := []struct {
		name  string
		input string
		want  civil.Date
	}{
		{"dd/mm/yyyy", "15/01/2024", jan15},
		{"dd-mm-yyyy", "15-01-2024", jan15},
		{"iso", "2024-01-15", jan15},
		{"yyyy/mm/dd", "2024/01/15", jan15},
		{"dd/mm/yy", "15/01/24", jan15},
		{"dd-mm-yy", "15-01-24", jan15},
		{"single digits", "5/3/2024", civil.Date{Year: 2024, Month: time.March, Day: 5}},
		{"english month", "21-Jul-2025", civil.Date{Year: 2025, Month: time.July, Day: 21}},
		{"spanish month", "12-jun-2025", civil.Date{Year: 2025, Month: time.June, Day: 12}},
		{"spanish month upper", "03-ENE-2025", civil.Date{Year: 2025, Month: time.January, Day: 3}},
		{"spanish ago", "30-ago-2024", civil.Date{Year: 2024, Month: time.August, Day: 30}},
		{"spanish dic", "31-dic-2023", civil.Date{Year: 2023, Month: time.December, Day: 31}},
		{"padded", "  2024-01-15  ", jan15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.Parse(tt.input)
			require.True(t, res.Valid, "input %q", tt.input)
			assert.Equal(t, tt.want, res.Date)
		})
	}
}

func TestDateParser_RoundTripISO(t *testing.T) {
	p := NewDateParser(0, 0, discardLogger())
	for _, in := range []string{"15/01/2024", "15-01-2024", "2024-01-15"} {
		assert.Equal(t, "2024-01-15", p.Parse(in).Date.String(), in)
	}
}

func TestDateParser_Rejections(t *testing.T) {
	p := NewDateParser(0, 0, discardLogger())

	tests := []struct {
		name     string
		input    string
		rejected bool
		raw      string
	}{
		{"old year named month", "21-Jul-1901", true, ""},
		{"excel corruption", "4/01/1901", true, ""},
		{"future year", "01/01/2031", true, ""},
		{"two digit year in 1900s", "01/01/99", true, ""},
		{"iso out of range", "2019-12-31", true, ""},
		{"garbage kept verbatim", "ayer", false, "ayer"},
		{"impossible day", "31/02/2024", false, "31/02/2024"},
		{"empty", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.Parse(tt.input)
			assert.False(t, res.Valid)
			assert.Equal(t, tt.rejected, res.Rejected)
			assert.Equal(t, tt.raw, res.Raw)
		})
	}
}

func TestDateParser_CustomWindow(t *testing.T) {
	p := NewDateParser(2015, 2040, discardLogger())
	res := p.Parse("2016-05-01")
	require.True(t, res.Valid)
	assert.Equal(t, 2016, res.Date.Year)

	assert.True(t, p.Parse("2041-01-01").Rejected)
}

func TestDateParser_TwoDigitYearPivot(t *testing.T) {
	wide := NewDateParser(1940, 2070, discardLogger())
	tests := []struct {
		input string
		year  int
	}{
		{"15/01/00", 2000},
		{"15/01/49", 2049},
		{"15-01-49", 2049},
		{"15/01/50", 1950},
		{"15-01-60", 1960},
		{"15/01/99", 1999},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			res := wide.Parse(tt.input)
			require.True(t, res.Valid)
			assert.Equal(t, tt.year, res.Date.Year)
		})
	}

	recent := NewDateParser(2000, 2070, discardLogger())
	assert.True(t, recent.Parse("15/01/49").Valid)
	assert.True(t, recent.Parse("15/01/50").Rejected)
	assert.True(t, recent.Parse("15/01/2055").Valid)
}

func TestFormatSpanish(t *testing.T) {
	tests := []struct {
		date civil.Date
		want string
	}{
		{civil.Date{Year: 2025, Month: time.June, Day: 12}, "12-jun-2025"},
		{civil.Date{Year: 2024, Month: time.January, Day: 5}, "5-ene-2024"},
		{civil.Date{Year: 2023, Month: time.December, Day: 31}, "31-dic-2023"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSpanish(tt.date))
		})
	}
}

func TestFormatSpanish_ParsesBack(t *testing.T) {
	p := NewDateParser(0, 0, discardLogger())
	d := civil.Date{Year: 2025, Month: time.August, Day: 9}
	res := p.Parse(FormatSpanish(d))
	require.True(t, res.Valid)
	assert.Equal(t, d, res.Date)
}
