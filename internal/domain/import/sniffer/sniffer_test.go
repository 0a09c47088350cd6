package sniffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

const bajioExport = "Cuenta: 0123456789,Periodo: Junio 2025\n" +
	"#,Fecha Movimiento,Hora,Recibo,Descripción,Cargos,Abonos,Saldo\n" +
	"1,12-Jun-2025,10:15:00,123456,\"SPEI RECIBIDO clave de rastreo: ABC123456789\",,\"1,500.00\",\"10,000.00\"\n" +
	",,,,,,,\n" +
	"2,13-Jun-2025,11:00:00,123457,COMISION POR MANEJO,50.00,,\"9,950.00\"\n"

func TestRead_BajioExport(t *testing.T) {
	table, cfg, err := Read([]byte(bajioExport))
	require.NoError(t, err)

	assert.Equal(t, FormatBajio, cfg.Format)
	assert.Equal(t, ',', cfg.Delimiter)
	assert.Equal(t, 1, cfg.SkipLines)
	assert.NotEmpty(t, cfg.Fingerprint)

	require.Len(t, table.Headers, 8)
	assert.Equal(t, "Fecha Movimiento", table.Headers[1])
	require.Len(t, table.Rows, 2, "blank rows are dropped")
	assert.Equal(t, "SPEI RECIBIDO clave de rastreo: ABC123456789", table.Rows[0][4])
	assert.Equal(t, "1,500.00", table.Rows[0][6])
	assert.Equal(t, "", table.Rows[0][5])
	assert.Equal(t, "COMISION POR MANEJO", table.Rows[1][4])
}

func TestRead_DelimiterSniffing(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		delimiter rune
	}{
		{
			name:      "semicolon",
			data:      "Fecha;Hora;Recibo;Descripcion;Cargo;Abono;Saldo\n15/01/2024;09:00;1;DEPOSITO;;100.00;100.00\n",
			delimiter: ';',
		},
		{
			name:      "tab",
			data:      "Fecha\tHora\tRecibo\tDescripcion\tCargo\tAbono\tSaldo\n15/01/2024\t09:00\t1\tDEPOSITO\t\t100.00\t100.00\n",
			delimiter: '\t',
		},
		{
			name:      "pipe",
			data:      "Fecha|Hora|Recibo|Descripcion|Cargo|Abono|Saldo\n15/01/2024|09:00|1|DEPOSITO||100.00|100.00\n",
			delimiter: '|',
		},
		{
			name:      "comma with CRLF",
			data:      "Fecha,Hora,Recibo,Descripcion,Cargo,Abono,Saldo\r\n15/01/2024,09:00,1,DEPOSITO,,100.00,100.00\r\n",
			delimiter: ',',
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, cfg, err := Read([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, FormatDelimited, cfg.Format)
			assert.Equal(t, tt.delimiter, cfg.Delimiter)
			require.Len(t, table.Rows, 1)
			assert.Equal(t, "DEPOSITO", table.Rows[0][3])
			assert.Equal(t, "100.00", table.Rows[0][5])
		})
	}
}

func TestRead_NarrowOrEmpty(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty input", ""},
		{"only whitespace", "\n\n  \n"},
		{"six columns", "Fecha,Hora,Recibo,Descripcion,Cargo,Abono\n15/01/2024,09:00,1,X,1,0\n"},
		{"header only", "Fecha,Hora,Recibo,Descripcion,Cargo,Abono,Saldo\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, _, err := Read([]byte(tt.data))
			require.NoError(t, err)
			assert.True(t, table.Empty())
		})
	}
}

func TestRead_ShortRowsArePadded(t *testing.T) {
	data := "Fecha,Hora,Recibo,Descripcion,Cargo,Abono,Saldo\n15/01/2024,09:00,1,RETIRO,20.00\n"
	table, _, err := Read([]byte(data))
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Len(t, table.Rows[0], 7)
	assert.Equal(t, "", table.Rows[0][6])
}

func TestDecode(t *testing.T) {
	t.Run("strips BOM", func(t *testing.T) {
		assert.Equal(t, "Fecha", Decode([]byte("\uFEFFFecha")))
	})

	t.Run("windows-1252 fallback", func(t *testing.T) {
		latin, err := charmap.Windows1252.NewEncoder().String("Descripción Depósito")
		require.NoError(t, err)
		assert.Equal(t, "Descripción Depósito", Decode([]byte(latin)))
	})

	t.Run("latin-1 bajio export keeps its signature", func(t *testing.T) {
		latin, err := charmap.Windows1252.NewEncoder().String(bajioExport)
		require.NoError(t, err)
		table, cfg, err := Read([]byte(latin))
		require.NoError(t, err)
		assert.Equal(t, FormatBajio, cfg.Format)
		assert.Len(t, table.Rows, 2)
	})
}

func TestRead_Workbook(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Cuenta: 0123456789"},
		{"#", "Fecha Movimiento", "Hora", "Recibo", "Descripción", "Cargos", "Abonos", "Saldo"},
		{"1", "12-Jun-2025", "10:15:00", "123456", "DEPOSITO EN EFECTIVO", "", "500.00", "500.00"},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	table, cfg, err := Read(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, cfg.Format)
	assert.Equal(t, 1, cfg.SkipLines)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "DEPOSITO EN EFECTIVO", table.Rows[0][4])
}

func TestGenerateFingerprint(t *testing.T) {
	a := generateFingerprint([]string{"Fecha Movimiento", "Hora"})
	b := generateFingerprint([]string{"fecha movimiento ", "HORA"})
	c := generateFingerprint([]string{"Fecha", "Hora"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
