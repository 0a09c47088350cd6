package sheets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const (
	valueInputUserEntered = "USER_ENTERED"
	valueRenderFormatted  = "FORMATTED_VALUE"
)

// GoogleConfig configures the Google Sheets adapter.
type GoogleConfig struct {
	SpreadsheetID   string
	CredentialsJSON string // inline service-account JSON
	CredentialsFile string // path to a service-account file
	AutoCreateTabs  bool
	// Options are appended to the client options, e.g. a custom endpoint.
	Options []option.ClientOption
}

// GoogleStore implements Store on top of the Sheets v4 API.
type GoogleStore struct {
	svc        *gsheets.Service
	id         string
	autoCreate bool
	logger     *slog.Logger

	mu    sync.Mutex
	props map[string]*gsheets.SheetProperties
}

// NewGoogleStore opens the spreadsheet identified by cfg.SpreadsheetID.
func NewGoogleStore(ctx context.Context, cfg GoogleConfig, logger *slog.Logger) (*GoogleStore, error) {
	if cfg.SpreadsheetID == "" {
		return nil, ErrMissingConfig
	}

	opts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	opts = append(opts, cfg.Options...)

	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, classify("Open", err)
	}

	s := &GoogleStore{
		svc:        svc,
		id:         cfg.SpreadsheetID,
		autoCreate: cfg.AutoCreateTabs,
		logger:     logger,
		props:      make(map[string]*gsheets.SheetProperties),
	}
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}

	logger.Info("connected to spreadsheet",
		slog.String("spreadsheet_id", cfg.SpreadsheetID),
		slog.Int("tabs", len(s.props)),
	)
	return s, nil
}

func (s *GoogleStore) EnsureTab(ctx context.Context, tab string, headers []string) error {
	if _, err := s.properties(ctx, tab); err == nil {
		return nil
	} else if !errors.Is(err, ErrTabNotFound) {
		return err
	}
	if !s.autoCreate {
		return newError(KindOther, "EnsureTab", fmt.Errorf("%w: %s", ErrTabNotFound, tab))
	}

	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			AddSheet: &gsheets.AddSheetRequest{
				Properties: &gsheets.SheetProperties{Title: tab},
			},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.id, req).Context(ctx).Do(); err != nil {
		return classify("EnsureTab", err)
	}
	if err := s.refresh(ctx); err != nil {
		return err
	}
	s.logger.Info("created tab", slog.String("tab", tab))

	if len(headers) == 0 {
		return nil
	}
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	return s.WriteRange(ctx, tab, RowsRange(1, 1, len(headers)), [][]any{row})
}

// ReadAll and ReadRange resolve the tab first so a missing tab reports
// ErrTabNotFound instead of an INVALID_ARGUMENT range error.
func (s *GoogleStore) ReadAll(ctx context.Context, tab string) ([][]string, error) {
	if _, err := s.properties(ctx, tab); err != nil {
		return nil, withOp(err, "ReadAll")
	}
	resp, err := s.svc.Spreadsheets.Values.Get(s.id, quoteTab(tab)).
		ValueRenderOption(valueRenderFormatted).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("ReadAll", err)
	}
	return toStrings(resp.Values), nil
}

func (s *GoogleStore) ReadRange(ctx context.Context, tab string, rng Range) ([][]string, error) {
	if _, err := s.properties(ctx, tab); err != nil {
		return nil, withOp(err, "ReadRange")
	}
	resp, err := s.svc.Spreadsheets.Values.Get(s.id, rng.A1(tab)).
		ValueRenderOption(valueRenderFormatted).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("ReadRange", err)
	}
	return toStrings(resp.Values), nil
}

func (s *GoogleStore) WriteRange(ctx context.Context, tab string, rng Range, rows [][]any) error {
	if len(rows) != rng.Rows() {
		return newError(KindOther, "WriteRange", ErrRowsMismatch)
	}
	vr := &gsheets.ValueRange{Range: rng.A1(tab), Values: toInterfaces(rows)}
	_, err := s.svc.Spreadsheets.Values.Update(s.id, vr.Range, vr).
		ValueInputOption(valueInputUserEntered).
		Context(ctx).
		Do()
	if err != nil {
		return classify("WriteRange", err)
	}
	return nil
}

func (s *GoogleStore) AppendRows(ctx context.Context, tab string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	vr := &gsheets.ValueRange{Values: toInterfaces(rows)}
	_, err := s.svc.Spreadsheets.Values.Append(s.id, quoteTab(tab), vr).
		ValueInputOption(valueInputUserEntered).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return classify("AppendRows", err)
	}
	return nil
}

func (s *GoogleStore) Grow(ctx context.Context, tab string, extra int) error {
	if extra <= 0 {
		return nil
	}
	p, err := s.properties(ctx, tab)
	if err != nil {
		return err
	}
	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			AppendDimension: &gsheets.AppendDimensionRequest{
				SheetId:   p.SheetId,
				Dimension: "ROWS",
				Length:    int64(extra),
			},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.id, req).Context(ctx).Do(); err != nil {
		return classify("Grow", err)
	}
	return s.refresh(ctx)
}

func (s *GoogleStore) RowCount(ctx context.Context, tab string) (int, error) {
	if err := s.refresh(ctx); err != nil {
		return 0, err
	}
	p, err := s.properties(ctx, tab)
	if err != nil {
		return 0, err
	}
	if p.GridProperties == nil {
		return 0, nil
	}
	return int(p.GridProperties.RowCount), nil
}

func (s *GoogleStore) GetCell(ctx context.Context, tab string, row, col int) (string, error) {
	rows, err := s.ReadRange(ctx, tab, Range{StartRow: row, EndRow: row, StartCol: col, EndCol: col})
	if err != nil {
		return "", err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return "", nil
	}
	return rows[0][0], nil
}

func (s *GoogleStore) properties(ctx context.Context, tab string) (*gsheets.SheetProperties, error) {
	s.mu.Lock()
	p, ok := s.props[tab]
	s.mu.Unlock()
	if ok {
		return p, nil
	}
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.props[tab]; ok {
		return p, nil
	}
	return nil, newError(KindOther, "Properties", fmt.Errorf("%w: %s", ErrTabNotFound, tab))
}

// withOp relabels a lookup error with the calling operation.
func withOp(err error, op string) error {
	var serr *Error
	if errors.As(err, &serr) && serr.Op != op {
		return &Error{Kind: serr.Kind, Op: op, Err: serr.Err}
	}
	return err
}

func (s *GoogleStore) refresh(ctx context.Context) error {
	ss, err := s.svc.Spreadsheets.Get(s.id).
		Fields("sheets(properties(sheetId,title,gridProperties(rowCount,columnCount)))").
		Context(ctx).
		Do()
	if err != nil {
		return classify("Metadata", err)
	}
	props := make(map[string]*gsheets.SheetProperties, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			props[sh.Properties.Title] = sh.Properties
		}
	}
	s.mu.Lock()
	s.props = props
	s.mu.Unlock()
	return nil
}

// classify maps transport failures to an ErrorKind using the structured
// HTTP status and reason fields of googleapi.Error.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return newError(kindForAPIError(gerr), op, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return newError(KindNetwork, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return newError(KindNetwork, op, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return newError(KindNetwork, op, err)
	}
	return newError(KindOther, op, err)
}

func kindForAPIError(gerr *googleapi.Error) ErrorKind {
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded", "quotaExceeded":
			return KindQuota
		}
	}

	switch {
	case gerr.Code == http.StatusTooManyRequests:
		return KindQuota
	case gerr.Code == http.StatusForbidden:
		return KindProtected
	case gerr.Code == http.StatusBadRequest && isProtectedEdit(gerr):
		return KindProtected
	case gerr.Code == http.StatusRequestTimeout || gerr.Code >= http.StatusInternalServerError:
		return KindNetwork
	default:
		return KindOther
	}
}

// isProtectedEdit recognises the INVALID_ARGUMENT status Sheets returns
// when a write touches a protected range.
func isProtectedEdit(gerr *googleapi.Error) bool {
	return strings.Contains(strings.ToLower(gerr.Message), "protected")
}

func toStrings(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		r := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				r[j] = fmt.Sprint(v)
			}
		}
		out[i] = r
	}
	return out
}

func toInterfaces(rows [][]any) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		r := make([]interface{}, len(row))
		copy(r, row)
		out[i] = r
	}
	return out
}
