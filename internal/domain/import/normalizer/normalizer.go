package normalizer

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/model"
	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/parser"
)

// Drop reasons.
const (
	ReasonNoDate        = "missing or invalid date"
	ReasonRejectedYear  = "date outside accepted years"
	ReasonNoDescription = "empty description"
)

// DroppedRow identifies a row removed during normalization.
type DroppedRow struct {
	SourceFile string
	RowIndex   int
	Reason     string
	Value      string
}

func (d DroppedRow) String() string {
	return fmt.Sprintf("%s row %d: %s (%q)", d.SourceFile, d.RowIndex, d.Reason, d.Value)
}

// Result is the output of Normalize.
type Result struct {
	Transactions []model.Transaction
	Dropped      []DroppedRow
	Columns      parser.ColumnMap
}

// Normalizer maps, parses and classifies statement rows.
type Normalizer struct {
	dates      *parser.DateParser
	classifier *Classifier
	logger     *slog.Logger
}

// New creates a Normalizer. A nil classifier uses DefaultTypeRules.
func New(dates *parser.DateParser, classifier *Classifier, logger *slog.Logger) *Normalizer {
	if classifier == nil {
		classifier = NewClassifier(DefaultTypeRules())
	}
	return &Normalizer{dates: dates, classifier: classifier, logger: logger}
}

// Classify exposes the type classifier.
func (n *Normalizer) Classify(description string) model.Type {
	return n.classifier.Classify(description)
}

// Normalize converts table into transactions. Rows without a valid date or
// with an empty description are dropped and reported. Missing columns read
// as empty and never fail.
func (n *Normalizer) Normalize(table *model.RawTable, sourceFile string) Result {
	if table.Empty() {
		return Result{}
	}

	cols := parser.MapColumns(table.Headers)
	res := Result{
		Transactions: make([]model.Transaction, 0, len(table.Rows)),
		Columns:      cols,
	}

	for i, row := range table.Rows {
		rowIndex := i + 1
		if idx, err := strconv.Atoi(cols.Value(row, parser.ColIndex)); err == nil {
			rowIndex = idx
		}

		desc := cols.Value(row, parser.ColDescription)
		rawDate := cols.Value(row, parser.ColDate)
		date := n.dates.Parse(rawDate)

		switch {
		case date.Rejected:
			res.Dropped = append(res.Dropped, n.drop(sourceFile, rowIndex, ReasonRejectedYear, rawDate))
			continue
		case !date.Valid:
			res.Dropped = append(res.Dropped, n.drop(sourceFile, rowIndex, ReasonNoDate, rawDate))
			continue
		case strings.TrimSpace(desc) == "":
			res.Dropped = append(res.Dropped, n.drop(sourceFile, rowIndex, ReasonNoDescription, ""))
			continue
		}

		tracking := cols.Value(row, parser.ColTrackingKey)
		if tracking == "" {
			tracking = ExtractTrackingKey(desc)
		}

		res.Transactions = append(res.Transactions, model.Transaction{
			RowIndex:    rowIndex,
			SourceFile:  sourceFile,
			Date:        date.Date,
			Time:        cols.Value(row, parser.ColTime),
			ReceiptRef:  cols.Value(row, parser.ColReceipt),
			Description: desc,
			Debit:       parser.ParseAmount(cols.Value(row, parser.ColDebit)),
			Credit:      parser.ParseAmount(cols.Value(row, parser.ColCredit)),
			Balance:     parser.ParseAmount(cols.Value(row, parser.ColBalance)),
			TrackingKey: tracking,
			Type:        n.classifier.Classify(desc),
		})
	}
	return res
}

func (n *Normalizer) drop(file string, row int, reason, value string) DroppedRow {
	d := DroppedRow{SourceFile: file, RowIndex: row, Reason: reason, Value: value}
	n.logger.Info("dropping statement row",
		slog.String("file", file),
		slog.Int("row", row),
		slog.String("reason", reason),
	)
	return d
}
