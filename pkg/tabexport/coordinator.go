package tabexport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Coordinator runs one export: Preprocess resolves defaults and starts
// accessor discovery, Build lays out every sheet and serializes the result.
type Coordinator struct {
	cfg        *ExportConfig
	log        zerolog.Logger
	delimiter  rune
	groupNames bool
	formatters map[string]CellFormatterFunc
	now        func() time.Time

	preprocessed bool
	fileName     string
	accessors    *accessorTable
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger for recovered cell failures and progress.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithDelimiter sets the field delimiter of flat output.
func WithDelimiter(r rune) Option {
	return func(c *Coordinator) { c.delimiter = r }
}

// WithGroupNames writes the sheet name as the first record of each flat
// group.
func WithGroupNames(enabled bool) Option {
	return func(c *Coordinator) { c.groupNames = enabled }
}

// WithFormatter registers a named formatter for this run only. It takes
// precedence over RegisterFormatter.
func WithFormatter(name string, fn CellFormatterFunc) Option {
	return func(c *Coordinator) { c.formatters[name] = fn }
}

// WithClock replaces time.Now for file names and generated-by stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator prepares a run over cfg. Preprocess fills defaults into cfg
// in place.
func NewCoordinator(cfg *ExportConfig, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:        cfg,
		log:        zerolog.Nop(),
		delimiter:  DefaultCSVDelimiter,
		formatters: make(map[string]CellFormatterFunc),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FileName is the artifact name chosen by Preprocess.
func (c *Coordinator) FileName() string { return c.fileName }

// Preprocess validates the configuration, fills sheet defaults and starts
// accessor discovery in the background. Calling it again has no effect.
func (c *Coordinator) Preprocess() error {
	if c.preprocessed {
		return nil
	}
	if c.cfg == nil {
		return configErrorf("", "configuration is nil")
	}
	if len(c.cfg.Sheets) == 0 {
		return configErrorf("sheets", "at least one sheet is required")
	}
	if c.cfg.Type == "" {
		c.cfg.Type = ExportTypeXLSX
	}
	if _, err := ParseExportType(string(c.cfg.Type)); err != nil {
		return &ConfigurationError{Field: "type", Err: err}
	}
	if c.cfg.Type.Flat() && (c.delimiter == '\r' || c.delimiter == '\n' || c.delimiter == '"') {
		return configErrorf("delimiter", "%q cannot separate fields", c.delimiter)
	}

	now := c.now()
	for i, sheet := range c.cfg.Sheets {
		if sheet == nil {
			return configErrorf(fmt.Sprintf("sheets[%d]", i), "sheet is nil")
		}
		if err := c.preprocessSheet(i, sheet, now); err != nil {
			return err
		}
	}
	c.fileName = fileName(c.cfg.FileName, c.cfg.Type, now)
	c.accessors = discoverAccessors(c.cfg.Sheets, c.log)
	c.preprocessed = true
	c.log.Debug().Str("file", c.fileName).Int("sheets", len(c.cfg.Sheets)).Msg("export preprocessed")
	return nil
}

func (c *Coordinator) preprocessSheet(i int, sheet *SheetConfig, now time.Time) error {
	field := fmt.Sprintf("sheets[%d]", i)

	name := strings.TrimSpace(sheet.Name)
	if name == "" {
		name = fmt.Sprintf("%s%d", DefaultSheetNamePrefix, i+1)
	}
	sheet.Name = sanitizeSheetName(name)
	if sheet.Name == "" {
		return configErrorf(field+".name", "%q is not a usable sheet name", name)
	}

	if sheet.DateFormat == "" {
		sheet.DateFormat = DefaultDateFormat
	}
	if sheet.DateLayout == "" {
		sheet.DateLayout = DefaultDateLayout
	}
	if sheet.TitleContent == "" && sheet.Title != "" {
		sheet.TitleContent = "Report Name: " + sheet.Title
	}
	if sheet.GeneratedBy == "" && c.cfg.GeneratedBy != "" {
		sheet.GeneratedBy = fmt.Sprintf("Report generated by: %s  on %s",
			c.cfg.GeneratedBy, c.cfg.Locale.FormatDate(now, sheet.DateLayout))
	}
	if sheet.TitleRegion == nil {
		sheet.TitleRegion = &ColumnSpan{From: 0, To: 3}
	}
	if sheet.GeneratedByRange == nil {
		sheet.GeneratedByRange = &ColumnSpan{From: 0, To: 3}
	}
	if err := checkSpan(field+".title_region", *sheet.TitleRegion); err != nil {
		return err
	}
	if err := checkSpan(field+".generated_by_region", *sheet.GeneratedByRange); err != nil {
		return err
	}

	if sheet.HeaderInfoColumns <= 0 {
		sheet.HeaderInfoColumns = DefaultHeaderInfoColumns
	}
	if sheet.HeaderInfoValueSpan <= 0 {
		sheet.HeaderInfoValueSpan = 1
	}
	if sheet.FilterColumns <= 0 {
		sheet.FilterColumns = DefaultFilterColumns
	}
	captionCol, valueCol := sheet.headerColumns()
	if captionCol < 0 || valueCol < 0 || captionCol == valueCol {
		return configErrorf(field+".header_value_start_col", "caption column %d and value column %d must be distinct and non-negative", captionCol, valueCol)
	}

	for j, comp := range sheet.Components {
		if err := c.preprocessComponent(fmt.Sprintf("%s.components[%d]", field, j), sheet.Name, j, comp); err != nil {
			return err
		}
	}
	return nil
}

func checkSpan(field string, s ColumnSpan) error {
	if s.From < 0 || s.To < s.From {
		return configErrorf(field, "invalid column span [%d, %d]", s.From, s.To)
	}
	return nil
}

func (c *Coordinator) preprocessComponent(field, sheetName string, j int, comp *ComponentConfig) error {
	if comp == nil {
		return configErrorf(field, "component is nil")
	}
	if comp.ID == "" {
		comp.ID = fmt.Sprintf("%s#%d", sheetName, j+1)
	}
	if comp.Source == nil {
		return configErrorf(field+".source", "component %q has no data source", comp.ID)
	}
	if len(comp.Columns) == 0 {
		return configErrorf(field+".columns", "component %q has no columns", comp.ID)
	}
	if comp.FreezeColumn != nil && *comp.FreezeColumn < 0 {
		return configErrorf(field+".freeze_column", "must not be negative")
	}
	seen := make(map[string]bool, len(comp.Columns))
	for k, col := range comp.Columns {
		colField := fmt.Sprintf("%s.columns[%d]", field, k)
		if col == nil || col.Key == "" {
			return configErrorf(colField, "column key is required")
		}
		if seen[col.Key] {
			return configErrorf(colField, "duplicate column key %q", col.Key)
		}
		seen[col.Key] = true

		if col.Formatter == nil && col.FormatterName != "" {
			fn, ok := c.formatter(col.FormatterName)
			if !ok {
				return configErrorf(colField+".formatter", "unknown formatter %q", col.FormatterName)
			}
			col.Formatter = fn
		}
		if col.BoolFormatter == nil && col.BoolFormatterName != "" {
			fn, ok := c.formatter(col.BoolFormatterName)
			if !ok {
				return configErrorf(colField+".bool_formatter", "unknown formatter %q", col.BoolFormatterName)
			}
			col.BoolFormatter = fn
		}
	}
	for _, hr := range append(append([]HeaderRowConfig(nil), comp.HeaderRows...), comp.FooterRows...) {
		if len(hr.Captions) > len(comp.Columns) {
			c.log.Warn().Str("component", comp.ID).Int("captions", len(hr.Captions)).Int("columns", len(comp.Columns)).
				Msg("header row has more captions than columns, extra captions are ignored")
		}
	}
	return nil
}

func (c *Coordinator) formatter(name string) (CellFormatterFunc, bool) {
	if fn, ok := c.formatters[name]; ok {
		return fn, true
	}
	return lookupFormatter(name)
}

// Build lays out every sheet and returns the finished document. It waits
// for accessor discovery before the first data row is written.
func (c *Coordinator) Build(ctx context.Context) (*Document, error) {
	if !c.preprocessed {
		return nil, &ConfigurationError{Err: ErrNotPreprocessed}
	}
	if err := c.accessors.WaitContext(ctx); err != nil {
		return nil, err
	}

	var (
		data []byte
		err  error
	)
	start := c.now()
	if c.cfg.Type.Flat() {
		data, err = c.buildFlat(ctx)
	} else {
		data, err = c.buildStructured(ctx)
	}
	if err != nil {
		return nil, err
	}
	c.log.Info().Str("file", c.fileName).Str("type", string(c.cfg.Type)).Int("bytes", len(data)).
		Dur("took", c.now().Sub(start)).Msg("export built")
	return &Document{FileName: c.fileName, Type: c.cfg.Type, data: data}, nil
}

func (c *Coordinator) buildStructured(ctx context.Context) ([]byte, error) {
	sink := NewExcelSink()
	defer sink.Close()

	planner := NewSheetPlanner(sink, c.cfg.Locale, c.accessors.For, c.log)
	for _, sheet := range c.cfg.Sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := planner.Plan(sheet)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", sheet.Name, err)
		}
		c.log.Debug().Str("sheet", sheet.Name).Int("rows", rows).Msg("sheet planned")
	}

	var buf bytes.Buffer
	if _, err := sink.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Coordinator) buildFlat(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	fw := newFlatWriter(&buf, c.delimiter, c.groupNames, c.cfg.Locale, c.accessors.For, c.log)
	for _, group := range groupSheets(c.cfg.Sheets) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := fw.writeGroup(group); err != nil {
			return nil, err
		}
	}
	if err := fw.flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func fileName(base string, t ExportType, now time.Time) string {
	ext := t.Extension()
	base = strings.TrimSuffix(strings.TrimSpace(base), "."+ext)
	if base == "" {
		return fmt.Sprintf("Export_%d_%d_%d__%d_%d_%d.%s",
			now.Day(), int(now.Month()), now.Year(), now.Hour(), now.Minute(), now.Second(), ext)
	}
	return fmt.Sprintf("%s_%d_%d_%d.%s", base, now.Year(), int(now.Month()), now.Day(), ext)
}

// ErrDocumentClosed is returned when a closed Document is read.
var ErrDocumentClosed = errors.New("document is closed")

// Document is the finished artifact of a run.
type Document struct {
	FileName string
	Type     ExportType

	mu     sync.Mutex
	data   []byte
	closed bool
}

// ContentType is the MIME type to deliver the document with.
func (d *Document) ContentType() string { return d.Type.ContentType() }

// Bytes returns the encoded document.
func (d *Document) Bytes() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDocumentClosed
	}
	return d.data, nil
}

// Size is the encoded length in bytes.
func (d *Document) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.data)
}

// WriteTo copies the document to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	data, err := d.Bytes()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	if err != nil {
		return int64(n), sinkError("write document", err)
	}
	return int64(n), nil
}

// Close releases the document. Closing twice is a no-op.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.data = nil
	return nil
}
