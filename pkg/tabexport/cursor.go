package tabexport

// RowCursor tracks where the next section writes on a sheet. Row only ever
// grows. The section flag records that a section wrote rows; the next
// section turns it into exactly one blank separator row.
type RowCursor struct {
	row          int
	captionCol   int
	valueCol     int
	sectionAdded bool
}

// NewRowCursor starts a cursor at row (zero based).
func NewRowCursor(row int) *RowCursor {
	if row < 0 {
		row = 0
	}
	return &RowCursor{row: row, valueCol: 1}
}

// Row is the next row to write.
func (c *RowCursor) Row() int { return c.row }

// CaptionCol is the column of the next metadata caption.
func (c *RowCursor) CaptionCol() int { return c.captionCol }

// ValueCol is the column of the next metadata value.
func (c *RowCursor) ValueCol() int { return c.valueCol }

// SectionAdded reports whether a separator is pending.
func (c *RowCursor) SectionAdded() bool { return c.sectionAdded }

// AdvanceRow moves to the next row and returns it.
func (c *RowCursor) AdvanceRow() int {
	c.row++
	return c.row
}

// ResetHeaderColumns places the metadata caption and value columns.
func (c *RowCursor) ResetHeaderColumns(captionCol, valueCol int) {
	c.captionCol = captionCol
	c.valueCol = valueCol
}

// ShiftHeaderColumns moves both metadata columns right by delta.
func (c *RowCursor) ShiftHeaderColumns(delta int) {
	c.captionCol += delta
	c.valueCol += delta
}

// MarkSectionAdded records that the current section wrote rows. Calling it
// more than once before the next BeginSection has no further effect.
func (c *RowCursor) MarkSectionAdded() {
	c.sectionAdded = true
}

// BeginSection consumes a pending separator, leaving one blank row.
func (c *RowCursor) BeginSection() {
	if c.sectionAdded {
		c.row++
		c.sectionAdded = false
	}
}
