// Package sniffer detects the layout of a statement export and reads it
// into a raw table. It recognizes the BanBajío export (metadata line plus a
// fixed comma-delimited header), generic delimited text and .xlsx workbooks.
package sniffer

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/model"
)

// MinColumns is the narrowest table the normalizer accepts.
const MinColumns = 7

// BajioSignature starts the second line of a BanBajío export.
const BajioSignature = "#,Fecha Movimiento,Hora,Recibo,Descripción"

// Format identifies how a file was read.
type Format string

const (
	FormatEmpty     Format = "empty"
	FormatBajio     Format = "banbajio"
	FormatDelimited Format = "delimited"
	FormatXLSX      Format = "xlsx"
)

var zipMagic = []byte("PK\x03\x04")

var ErrUnreadable = errors.New("statement could not be read")

// FileConfig holds the detected configuration of a statement file.
type FileConfig struct {
	Format      Format
	Delimiter   rune     // field delimiter for text formats
	SkipLines   int      // metadata lines before the header
	Headers     []string // trimmed header names
	Fingerprint string   // SHA256 of the normalized headers
}

// Read detects the layout of data and returns its rows. Tables narrower than
// MinColumns and empty inputs yield an empty table without error.
func Read(data []byte) (*model.RawTable, *FileConfig, error) {
	if bytes.HasPrefix(data, zipMagic) {
		return readWorkbook(data)
	}

	text := Decode(data)
	cfg := DetectConfig(text)
	if cfg.Format == FormatEmpty {
		return &model.RawTable{}, cfg, nil
	}

	lines := splitLines(text)
	body := strings.Join(lines[cfg.SkipLines:], "\n")

	reader := csv.NewReader(strings.NewReader(body))
	reader.Comma = cfg.Delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, cfg, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return buildTable(records, cfg), cfg, nil
}

// Decode returns data as text. A UTF-8 BOM is stripped and input that is
// not valid UTF-8 is decoded as Windows-1252.
func Decode(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\uFEFF"))
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

// DetectConfig inspects decoded text and picks the layout.
func DetectConfig(text string) *FileConfig {
	lines := splitLines(text)
	first := firstNonEmpty(lines)
	if first < 0 {
		return &FileConfig{Format: FormatEmpty}
	}

	if len(lines) >= 2 && strings.HasPrefix(cleanLine(lines[1]), BajioSignature) {
		return &FileConfig{
			Format:    FormatBajio,
			Delimiter: ',',
			SkipLines: 1,
		}
	}

	delimiter, _ := detectDelimiter(cleanLine(lines[first]))
	if delimiter == 0 {
		delimiter = ','
	}
	return &FileConfig{
		Format:    FormatDelimited,
		Delimiter: delimiter,
		SkipLines: first,
	}
}

func readWorkbook(data []byte) (*model.RawTable, *FileConfig, error) {
	cfg := &FileConfig{Format: FormatXLSX}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, cfg, fmt.Errorf("%w: failed to open workbook: %v", ErrUnreadable, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &model.RawTable{}, cfg, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, cfg, fmt.Errorf("%w: failed to read sheet %s: %v", ErrUnreadable, sheets[0], err)
	}

	// The workbook variant of the export keeps the metadata row too.
	if len(rows) >= 2 && strings.HasPrefix(strings.Join(rows[1], ","), BajioSignature) {
		cfg.SkipLines = 1
	}
	if cfg.SkipLines >= len(rows) {
		return &model.RawTable{}, cfg, nil
	}
	return buildTable(rows[cfg.SkipLines:], cfg), cfg, nil
}

// buildTable turns records (header first) into an aligned table.
func buildTable(records [][]string, cfg *FileConfig) *model.RawTable {
	if len(records) == 0 {
		return &model.RawTable{}
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.TrimSpace(h)
	}
	cfg.Headers = headers
	cfg.Fingerprint = generateFingerprint(headers)

	if len(headers) < MinColumns {
		return &model.RawTable{}
	}

	table := &model.RawTable{Headers: headers, Rows: make([][]string, 0, len(records)-1)}
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		row := make([]string, len(headers))
		for i := range row {
			if i < len(rec) {
				row[i] = strings.TrimSpace(rec[i])
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines
}

func firstNonEmpty(lines []string) int {
	for i, l := range lines {
		if cleanLine(l) != "" {
			return i
		}
	}
	return -1
}

func cleanLine(line string) string {
	line = strings.TrimPrefix(line, "\uFEFF")
	return strings.TrimSpace(line)
}

// detectDelimiter picks the most frequent candidate on the header line.
func detectDelimiter(line string) (rune, int) {
	delimiters := []rune{';', '\t', ',', '|'}
	bestDelimiter := rune(0)
	bestCount := 0
	for _, d := range delimiters {
		count := strings.Count(line, string(d))
		if count > bestCount {
			bestCount = count
			bestDelimiter = d
		}
	}
	return bestDelimiter, bestCount
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// generateFingerprint hashes the normalized header names so logs can tell
// export layouts apart.
func generateFingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	joined := strings.Join(normalized, "|")
	hash := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(hash[:])
}
