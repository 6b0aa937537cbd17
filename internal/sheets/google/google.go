package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"finance/internal/core"
	"finance/internal/ports"
	"finance/internal/ratelimit"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// sheetsAPI is the slice of the Sheets API the client uses.
type sheetsAPI interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	Update(ctx context.Context, spreadsheetID, rng string, values [][]any) error
	SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error)
	AddSheet(ctx context.Context, spreadsheetID, title string) error
}

type sheetsValues struct {
	svc *gsheet.Service
}

func (v sheetsValues) SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error) {
	meta, err := v.svc.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(meta.Sheets))
	for _, sh := range meta.Sheets {
		if sh.Properties != nil {
			titles = append(titles, sh.Properties.Title)
		}
	}
	return titles, nil
}

func (v sheetsValues) AddSheet(ctx context.Context, spreadsheetID, title string) error {
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{
			{AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}}},
		},
	}
	_, err := v.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	return err
}

func (v sheetsValues) Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := v.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (v sheetsValues) Update(ctx context.Context, spreadsheetID, rng string, values [][]any) error {
	vr := &gsheet.ValueRange{Values: values}
	_, err := v.svc.Spreadsheets.Values.Update(spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}

// Client writes month summaries to a spreadsheet, one sheet per year.
type Client struct {
	values        sheetsAPI
	spreadsheetID string
	sheetBase     string
	limiter       *ratelimit.Limiter
	now           func() time.Time

	mu    sync.Mutex
	known map[string]bool // sheet titles seen in the spreadsheet
}

var _ ports.SummaryWriter = (*Client)(nil)

// Options configures New. Either CredentialsJSON or CredentialsFile must be set.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	// WritesPerMinute caps API calls; zero uses the Sheets default quota.
	WritesPerMinute int
}

// New creates a Sheets client authenticated with a service account.
// SheetName defaults to "Summary" and is prefixed with the year of each month
// written, e.g. "2024 Summary".
func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	base := strings.TrimSpace(opts.SheetName)
	if base == "" {
		base = "Summary"
	}

	svc, err := newSheetsService(ctx, opts.CredentialsJSON, opts.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		values:        sheetsValues{svc: svc},
		spreadsheetID: spreadsheetID,
		sheetBase:     base,
		limiter:       ratelimit.NewLimiter(ratelimit.Config{PerMinute: opts.WritesPerMinute}),
		now:           time.Now,
	}, nil
}

// Close stops the client's rate limiter.
func (c *Client) Close() {
	if c.limiter != nil {
		c.limiter.Stop()
	}
}

// RateLimitMetrics reports how often the client had to wait for quota.
func (c *Client) RateLimitMetrics() ratelimit.Metrics {
	if c.limiter == nil {
		return ratelimit.Metrics{}
	}
	return c.limiter.GetMetrics()
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx, c.spreadsheetID)
}

func (c *Client) get(ctx context.Context, rng string) ([][]any, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	return c.values.Get(ctx, c.spreadsheetID, rng)
}

func (c *Client) update(ctx context.Context, rng string, values [][]any) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	return c.values.Update(ctx, c.spreadsheetID, rng, values)
}

// ensureSheet adds the sheet when the spreadsheet does not have it yet.
// Titles are listed once and remembered for the client's lifetime.
func (c *Client) ensureSheet(ctx context.Context, title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.known[title] {
		return nil
	}

	if err := c.wait(ctx); err != nil {
		return err
	}
	titles, err := c.values.SheetTitles(ctx, c.spreadsheetID)
	if err != nil {
		return fmt.Errorf("list sheets: %w", err)
	}
	if c.known == nil {
		c.known = make(map[string]bool, len(titles))
	}
	for _, t := range titles {
		c.known[t] = true
	}
	if c.known[title] {
		return nil
	}

	if err := c.wait(ctx); err != nil {
		return err
	}
	if err := c.values.AddSheet(ctx, c.spreadsheetID, title); err != nil {
		return fmt.Errorf("add sheet %q: %w", title, err)
	}
	c.known[title] = true
	slog.InfoContext(ctx, "Sheet created", "sheet", title)
	return nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, credentialsJSON, credentialsFile string) (*gsheet.Service, error) {
	credentialsJSON = strings.TrimSpace(credentialsJSON)
	credentialsFile = strings.TrimSpace(credentialsFile)

	var creds []byte
	switch {
	case credentialsJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		creds = []byte(credentialsJSON)
	case credentialsFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", credentialsFile)
		b, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		creds = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// WriteMonthSummary upserts the row of (month, tenant, user) in the year's
// sheet. The sheet is created on the first write of its year and the header
// is written when the sheet is empty.
func (c *Client) WriteMonthSummary(ctx context.Context, scope core.Scope, month core.Date, s core.FinanceSummary) error {
	if c.values == nil {
		return errors.New("sheets service not initialized")
	}
	sheet := yearPrefixedName(c.sheetBase, month.Year())
	key := month.Format(monthLayout)

	if err := c.ensureSheet(ctx, sheet); err != nil {
		return err
	}

	rng := fmt.Sprintf("%s!A:C", sheet)
	rows, err := c.get(ctx, rng)
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}

	row := findSummaryRow(rows, key, scope)
	if row == 0 {
		if len(rows) == 0 {
			headerRange := fmt.Sprintf("%s!A1:%s1", sheet, lastColumn)
			if err := c.update(ctx, headerRange, [][]any{summaryHeader()}); err != nil {
				return fmt.Errorf("write header in %s: %w", sheet, err)
			}
			rows = [][]any{summaryHeader()}
		}
		row = len(rows) + 1
	}

	dataRange := fmt.Sprintf("%s!A%d:%s%d", sheet, row, lastColumn, row)
	values := [][]any{summaryRow(key, scope, s, c.now())}
	if err := c.update(ctx, dataRange, values); err != nil {
		return fmt.Errorf("update %s: %w", dataRange, err)
	}

	slog.InfoContext(ctx, "Month summary written",
		"sheets_ref", dataRange,
		"month", key,
		"tenant_id", scope.TenantID,
		"user_id", scope.UserID)
	return nil
}
