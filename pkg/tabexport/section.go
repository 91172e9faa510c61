package tabexport

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// SectionBuilder writes the structural sections of one sheet. Every section
// starts at the cursor's row and leaves the cursor on the row after it.
type SectionBuilder struct {
	sink   SheetSink
	sheet  SheetRef
	cursor *RowCursor
	fc     FormatContext
	log    zerolog.Logger
}

// NewSectionBuilder binds a builder to one sheet and its cursor.
func NewSectionBuilder(sink SheetSink, sheet SheetRef, cursor *RowCursor, fc FormatContext, log zerolog.Logger) *SectionBuilder {
	return &SectionBuilder{
		sink:   sink,
		sheet:  sheet,
		cursor: cursor,
		fc:     fc,
		log:    log.With().Str("sheet", string(sheet)).Logger(),
	}
}

// Cursor returns the cursor the builder advances.
func (b *SectionBuilder) Cursor() *RowCursor { return b.cursor }

// Banner writes text into one row merged across span. Empty text writes
// nothing.
func (b *SectionBuilder) Banner(text string, span ColumnSpan, style *StyleTemplate) error {
	if text == "" {
		return nil
	}
	if span.To < span.From {
		span.To = span.From
	}
	b.cursor.BeginSection()
	row := b.cursor.Row()
	if err := b.writeCell(row, span.From, text, style, ""); err != nil {
		return err
	}
	for col := span.From + 1; col <= span.To; col++ {
		if err := b.writeCell(row, col, nil, style, ""); err != nil {
			return err
		}
	}
	if span.To > span.From {
		region := MergedRegion{StartRow: row, EndRow: row, StartCol: span.From, EndCol: span.To}
		if err := b.sink.AddMergedRegion(b.sheet, region); err != nil {
			return err
		}
	}
	b.cursor.AdvanceRow()
	b.cursor.MarkSectionAdded()
	return nil
}

// BlockLayout places a caption/value metadata block.
type BlockLayout struct {
	// PerRow is the number of pairs before wrapping to a new row.
	PerRow int
	// ValueSpan is the number of columns each value is merged across.
	ValueSpan  int
	CaptionCol int
	ValueCol   int
}

// KeyValueBlock writes caption/value pairs left to right, wrapping after
// layout.PerRow pairs. A pending separator from the previous section is
// applied once before the block, and the block leaves one pending after it.
func (b *SectionBuilder) KeyValueBlock(pairs []KeyValue, layout BlockLayout, captionStyle, valueStyle *StyleTemplate) error {
	if len(pairs) == 0 {
		return nil
	}
	if layout.PerRow <= 0 {
		layout.PerRow = 1
	}
	if layout.ValueSpan <= 0 {
		layout.ValueSpan = 1
	}

	b.cursor.BeginSection()
	b.cursor.ResetHeaderColumns(layout.CaptionCol, layout.ValueCol)
	for i, kv := range pairs {
		if i > 0 {
			if i%layout.PerRow == 0 {
				b.cursor.AdvanceRow()
				b.cursor.ResetHeaderColumns(layout.CaptionCol, layout.ValueCol)
			} else {
				b.cursor.ShiftHeaderColumns(layout.ValueSpan + 1)
			}
		}
		row := b.cursor.Row()
		if err := b.writeCell(row, b.cursor.CaptionCol(), kv.Caption, captionStyle, ""); err != nil {
			return err
		}
		valueCol := b.cursor.ValueCol()
		if err := b.writeCell(row, valueCol, kv.Value, valueStyle, ""); err != nil {
			return err
		}
		if layout.ValueSpan > 1 {
			last := valueCol + layout.ValueSpan - 1
			for col := valueCol + 1; col <= last; col++ {
				if err := b.writeCell(row, col, nil, valueStyle, ""); err != nil {
					return err
				}
			}
			region := MergedRegion{StartRow: row, EndRow: row, StartCol: valueCol, EndCol: last}
			if err := b.sink.AddMergedRegion(b.sheet, region); err != nil {
				return err
			}
		}
	}
	b.cursor.AdvanceRow()
	b.cursor.MarkSectionAdded()
	return nil
}

type mergeRole int

const (
	roleLiteral mergeRole = iota
	roleGroupStart
	roleGroupInside
)

type mergePlan struct {
	roles    []mergeRole
	captions map[int]string
	regions  [][2]int
}

// planMerges resolves merge groups against the visible keys. Groups whose
// keys are missing, reversed or overlapping an earlier group are skipped.
func planMerges(keys []string, groups []MergeGroup, log zerolog.Logger) mergePlan {
	plan := mergePlan{roles: make([]mergeRole, len(keys)), captions: make(map[int]string)}
	claimed := make([]bool, len(keys))
	for _, g := range groups {
		start, end := -1, -1
		for i, key := range keys {
			if start < 0 && strings.EqualFold(key, g.StartKey) {
				start = i
			}
			if start >= 0 && strings.EqualFold(key, g.EndKey) {
				end = i
				break
			}
		}
		if start < 0 || end < 0 {
			log.Warn().Str("start", g.StartKey).Str("end", g.EndKey).Msg("merge group keys not visible, ignoring group")
			continue
		}
		overlap := false
		for i := start; i <= end; i++ {
			overlap = overlap || claimed[i]
		}
		if overlap {
			log.Warn().Str("start", g.StartKey).Str("end", g.EndKey).Msg("merge group overlaps another group, ignoring group")
			continue
		}
		for i := start; i <= end; i++ {
			claimed[i] = true
			plan.roles[i] = roleGroupInside
		}
		plan.roles[start] = roleGroupStart
		plan.captions[start] = g.Caption
		if end > start {
			plan.regions = append(plan.regions, [2]int{start, end})
		}
	}
	return plan
}

// CaptionRows writes header or footer rows for comp. With fallback set,
// columns without a configured caption show their binding caption.
func (b *SectionBuilder) CaptionRows(comp *ComponentConfig, rows []HeaderRowConfig, style *StyleTemplate, fallback bool) error {
	keys := comp.Keys()
	for _, hr := range rows {
		row := b.cursor.Row()
		plan := planMerges(keys, hr.MergeGroups, b.log)
		for col, binding := range comp.Columns {
			var value interface{}
			switch plan.roles[col] {
			case roleGroupStart:
				value = plan.captions[col]
			case roleGroupInside:
				// absorbed by the merged region
			default:
				value = literalCaption(hr, col, binding, fallback)
			}
			if err := b.writeCell(row, col, value, style, ""); err != nil {
				return err
			}
		}
		for _, r := range plan.regions {
			region := MergedRegion{StartRow: row, EndRow: row, StartCol: r[0], EndCol: r[1]}
			if err := b.sink.AddMergedRegion(b.sheet, region); err != nil {
				return err
			}
		}
		b.cursor.AdvanceRow()
	}
	return nil
}

func literalCaption(hr HeaderRowConfig, col int, binding *ColumnBinding, fallback bool) string {
	switch {
	case col < len(hr.Captions):
		return hr.Captions[col]
	case hr.Row != nil:
		return hr.Row.Caption(binding.Key)
	case fallback:
		return binding.Caption()
	}
	return ""
}

// DataRows writes one row per item of comp's source. Cell failures are
// logged and never stop the block.
func (b *SectionBuilder) DataRows(comp *ComponentConfig, accessors []Accessor) error {
	for i, item := range comp.Source.Items() {
		row := b.cursor.Row()
		style := rowStyle(comp, i, comp.Source.HasChildren(item))
		for col, binding := range comp.Columns {
			var acc Accessor
			if col < len(accessors) {
				acc = accessors[col]
			}
			out, numFmt := b.cellValue(binding, acc, item, row, col)
			value := out.Value
			if value == nil {
				value = ""
			}
			if err := b.writeCell(row, col, value, style, numFmt); err != nil {
				return err
			}
		}
		b.cursor.AdvanceRow()
	}
	return nil
}

// rowStyle alternates on the item index within the component, not on the
// sheet row: the first data row of every component gets the content style.
func rowStyle(comp *ComponentConfig, index int, parent bool) *StyleTemplate {
	switch {
	case parent:
		return orDefault(comp.ParentStyle, DefaultParentStyle)
	case index%2 == 0:
		return orDefault(comp.ContentStyle, DefaultContentStyle)
	default:
		return comp.RowStyle
	}
}

func (b *SectionBuilder) cellValue(binding *ColumnBinding, acc Accessor, item interface{}, row, col int) (FormattedValue, NumberFormat) {
	if acc == nil {
		return FormattedValue{}, ""
	}
	raw, err := readValue(acc, item)
	if err != nil {
		b.logCell(row, col, &CellFormattingError{Key: binding.Key, Err: err})
		return FormattedValue{}, ""
	}
	fc := b.fc
	fc.Item = item
	out, numFmt, err := Format(raw, binding, fc)
	if err != nil {
		b.logCell(row, col, err)
	}
	return out, numFmt
}

func readValue(acc Accessor, item interface{}) (v interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("accessor panicked: %v", r)
		}
	}()
	return acc(item)
}

func (b *SectionBuilder) logCell(row, col int, err error) {
	b.log.Warn().Err(err).Int("row", row).Int("column", col).Msg("cell degraded")
}

// Finish applies the component's freeze pane and column autosizing. It is
// called once per component after its rows are written.
func (b *SectionBuilder) Finish(comp *ComponentConfig, headerRow int) error {
	if comp.FreezeColumn != nil {
		if err := b.sink.SetFreezePane(b.sheet, *comp.FreezeColumn, headerRow); err != nil {
			return err
		}
	}
	if comp.autosize() {
		for col := range comp.Columns {
			if err := b.sink.AutosizeColumn(b.sheet, col); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *SectionBuilder) writeCell(row, col int, value interface{}, style *StyleTemplate, numFmt NumberFormat) error {
	cell := b.sink.CreateCell(b.sink.CreateRow(b.sheet, row), col)
	if value != nil {
		if err := b.sink.SetCellValue(cell, value); err != nil {
			return err
		}
	}
	handle, err := b.sink.Style(style, numFmt)
	if err != nil {
		// an unusable style leaves the cell unstyled
		b.logCell(row, col, err)
		return nil
	}
	if handle == 0 {
		return nil
	}
	return b.sink.SetCellStyle(cell, handle)
}
