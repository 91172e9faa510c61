package tabexport

import (
	"fmt"

	"github.com/rs/zerolog"
)

// AccessorLookup returns the per column accessors of a component.
type AccessorLookup func(comp *ComponentConfig) []Accessor

// SheetPlanner lays out sheets section by section. Sheets that share a name
// continue on the same grid below the rows already written.
type SheetPlanner struct {
	sink      SheetSink
	locale    Locale
	accessors AccessorLookup
	log       zerolog.Logger
	cursors   map[string]*RowCursor
}

func NewSheetPlanner(sink SheetSink, locale Locale, accessors AccessorLookup, log zerolog.Logger) *SheetPlanner {
	return &SheetPlanner{
		sink:      sink,
		locale:    locale,
		accessors: accessors,
		log:       log,
		cursors:   make(map[string]*RowCursor),
	}
}

// Plan writes one sheet configuration and returns the sheet's row count.
func (p *SheetPlanner) Plan(sheet *SheetConfig) (int, error) {
	ref, err := p.sink.CreateSheet(sheet.Name)
	if err != nil {
		return 0, err
	}
	cursor, ok := p.cursors[sheet.Name]
	if !ok {
		cursor = NewRowCursor(0)
		p.cursors[sheet.Name] = cursor
	}
	fc := FormatContext{Locale: p.locale, DateFormat: sheet.DateFormat, DateLayout: sheet.DateLayout}
	b := NewSectionBuilder(p.sink, ref, cursor, fc, p.log)

	if !sheet.HideTitle {
		if err := b.Banner(sheet.TitleContent, spanOrDefault(sheet.TitleRegion), orDefault(sheet.TitleStyle, DefaultTitleStyle)); err != nil {
			return 0, fmt.Errorf("title: %w", err)
		}
	}
	if !sheet.HideGeneratedBy {
		if err := b.Banner(sheet.GeneratedBy, spanOrDefault(sheet.GeneratedByRange), orDefault(sheet.GeneratedByStyle, DefaultGeneratedByStyle)); err != nil {
			return 0, fmt.Errorf("generated by: %w", err)
		}
	}

	captionCol, valueCol := sheet.headerColumns()
	filters := BlockLayout{PerRow: sheet.FilterColumns, ValueSpan: 1, CaptionCol: captionCol, ValueCol: valueCol}
	err = b.KeyValueBlock(sheet.FilterInfo, filters,
		orDefault(sheet.HeaderCaptionStyle, DefaultHeaderCaptionStyle),
		orDefault(sheet.HeaderValueStyle, DefaultHeaderValueStyle))
	if err != nil {
		return 0, fmt.Errorf("filter info: %w", err)
	}
	info := BlockLayout{PerRow: sheet.HeaderInfoColumns, ValueSpan: sheet.HeaderInfoValueSpan, CaptionCol: captionCol, ValueCol: valueCol}
	err = b.KeyValueBlock(sheet.HeaderInfo, info,
		orDefault(sheet.AdditionalCaptionStyle, DefaultHeaderCaptionStyle),
		orDefault(sheet.AdditionalValueStyle, DefaultAdditionalValueStyle))
	if err != nil {
		return 0, fmt.Errorf("header info: %w", err)
	}

	for _, comp := range sheet.Components {
		if err := p.planComponent(b, comp); err != nil {
			return 0, fmt.Errorf("component %q: %w", comp.ID, err)
		}
	}
	return cursor.Row(), nil
}

func (p *SheetPlanner) planComponent(b *SectionBuilder, comp *ComponentConfig) error {
	cursor := b.Cursor()
	cursor.BeginSection()
	headerRow := cursor.Row()

	headerStyle := orDefault(comp.HeaderStyle, DefaultTableHeaderStyle)
	if err := b.CaptionRows(comp, comp.HeaderRows, headerStyle, true); err != nil {
		return err
	}
	if err := b.DataRows(comp, p.accessors(comp)); err != nil {
		return err
	}
	footerStyle := orDefault(comp.FooterStyle, DefaultTableHeaderStyle)
	if err := b.CaptionRows(comp, comp.FooterRows, footerStyle, false); err != nil {
		return err
	}
	if err := b.Finish(comp, headerRow); err != nil {
		return err
	}
	cursor.MarkSectionAdded()
	return nil
}

func spanOrDefault(span *ColumnSpan) ColumnSpan {
	if span == nil {
		return ColumnSpan{From: 0, To: 3}
	}
	return *span
}
