package tabexport

import (
	"encoding/csv"
	"io"

	"github.com/rs/zerolog"
)

// sheetGroup collects the sheet configurations sharing one name. In flat
// output each group is one block of records.
type sheetGroup struct {
	name   string
	sheets []*SheetConfig
}

func groupSheets(sheets []*SheetConfig) []*sheetGroup {
	var groups []*sheetGroup
	byName := make(map[string]*sheetGroup)
	for _, sheet := range sheets {
		g, ok := byName[sheet.Name]
		if !ok {
			g = &sheetGroup{name: sheet.Name}
			byName[sheet.Name] = g
			groups = append(groups, g)
		}
		g.sheets = append(g.sheets, sheet)
	}
	return groups
}

// flatWriter renders components as delimited records. It has no notion of
// styles, merges or metadata blocks.
type flatWriter struct {
	raw        io.Writer
	csv        *csv.Writer
	groupNames bool
	locale     Locale
	accessors  AccessorLookup
	log        zerolog.Logger
	groups     int
}

func newFlatWriter(w io.Writer, delimiter rune, groupNames bool, locale Locale, accessors AccessorLookup, log zerolog.Logger) *flatWriter {
	cw := csv.NewWriter(w)
	cw.Comma = delimiter
	return &flatWriter{
		raw:        w,
		csv:        cw,
		groupNames: groupNames,
		locale:     locale,
		accessors:  accessors,
		log:        log,
	}
}

func (f *flatWriter) writeGroup(g *sheetGroup) error {
	if f.groups > 0 {
		if err := f.flush(); err != nil {
			return err
		}
		if _, err := io.WriteString(f.raw, "\n"); err != nil {
			return sinkError("write", err)
		}
	}
	f.groups++

	if f.groupNames {
		if err := f.write([]string{g.name}); err != nil {
			return err
		}
	}
	for _, sheet := range g.sheets {
		fc := FormatContext{Locale: f.locale, DateFormat: sheet.DateFormat, DateLayout: sheet.DateLayout}
		for _, comp := range sheet.Components {
			if err := f.writeComponent(sheet.Name, comp, fc); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *flatWriter) writeComponent(sheet string, comp *ComponentConfig, fc FormatContext) error {
	if header := flatHeader(comp); header != nil {
		if err := f.write(header); err != nil {
			return err
		}
	}
	accessors := f.accessors(comp)
	for i, item := range comp.Source.Items() {
		record := make([]string, len(comp.Columns))
		for col, binding := range comp.Columns {
			var acc Accessor
			if col < len(accessors) {
				acc = accessors[col]
			}
			record[col] = f.cellText(sheet, binding, acc, item, fc, i, col)
		}
		if err := f.write(record); err != nil {
			return err
		}
	}
	return nil
}

// flatHeader is the header record of a component: its explicit header keys,
// else its column keys when header rows are configured, else nothing.
func flatHeader(comp *ComponentConfig) []string {
	switch {
	case len(comp.HeaderKeys) > 0:
		return comp.HeaderKeys
	case len(comp.HeaderRows) > 0:
		return comp.Keys()
	}
	return nil
}

func (f *flatWriter) cellText(sheet string, binding *ColumnBinding, acc Accessor, item interface{}, fc FormatContext, row, col int) string {
	if acc == nil {
		return ""
	}
	raw, err := readValue(acc, item)
	if err != nil {
		f.logCell(sheet, row, col, &CellFormattingError{Key: binding.Key, Err: err})
		return ""
	}
	fc.Item = item
	out, _, err := Format(raw, binding, fc)
	if err != nil {
		f.logCell(sheet, row, col, err)
	}
	return out.Text
}

func (f *flatWriter) logCell(sheet string, row, col int, err error) {
	f.log.Warn().Err(err).Str("sheet", sheet).Int("row", row).Int("column", col).Msg("cell degraded")
}

func (f *flatWriter) write(record []string) error {
	return sinkError("write", f.csv.Write(record))
}

func (f *flatWriter) flush() error {
	f.csv.Flush()
	return sinkError("flush", f.csv.Error())
}
