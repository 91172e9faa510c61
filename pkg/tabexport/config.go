package tabexport

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Preprocess.
const (
	DefaultSheetNamePrefix   = "Sheet"
	DefaultDateFormat        = "ddd, dd.mm.yyyy"
	DefaultDateLayout        = "Mon, 02.01.2006"
	DefaultHeaderInfoColumns = 2
	DefaultFilterColumns     = 2
	DefaultCSVDelimiter      = ';'
	maxSheetNameLength       = 31
)

// ExportConfig describes one export run.
type ExportConfig struct {
	Type        ExportType     `yaml:"type"`
	FileName    string         `yaml:"file_name"`
	GeneratedBy string         `yaml:"generated_by"`
	Locale      Locale         `yaml:"locale"`
	Sheets      []*SheetConfig `yaml:"sheets"`
}

// SheetConfig describes one logical sheet. Several SheetConfigs may share a
// name; they then write into the same sheet one after another.
type SheetConfig struct {
	Name string `yaml:"name"`

	Title            string      `yaml:"title"`
	TitleContent     string      `yaml:"title_content"`
	HideTitle        bool        `yaml:"hide_title"`
	TitleRegion      *ColumnSpan `yaml:"title_region"`
	GeneratedBy      string      `yaml:"generated_by_content"`
	HideGeneratedBy  bool        `yaml:"hide_generated_by"`
	GeneratedByRange *ColumnSpan `yaml:"generated_by_region"`

	FilterInfo    OrderedPairs `yaml:"filter_info"`
	FilterColumns int          `yaml:"filter_columns"`

	HeaderInfo            OrderedPairs `yaml:"header_info"`
	HeaderInfoColumns     int          `yaml:"header_info_columns"`
	HeaderInfoValueSpan   int          `yaml:"header_info_value_span"`
	HeaderCaptionStartCol int          `yaml:"header_caption_start_col"`
	HeaderValueStartCol   *int         `yaml:"header_value_start_col"`

	DateFormat string `yaml:"date_format"`
	DateLayout string `yaml:"date_layout"`

	TitleStyle             *StyleTemplate `yaml:"title_style"`
	GeneratedByStyle       *StyleTemplate `yaml:"generated_by_style"`
	HeaderCaptionStyle     *StyleTemplate `yaml:"header_caption_style"`
	HeaderValueStyle       *StyleTemplate `yaml:"header_value_style"`
	AdditionalCaptionStyle *StyleTemplate `yaml:"header_info_caption_style"`
	AdditionalValueStyle   *StyleTemplate `yaml:"header_info_value_style"`

	Components []*ComponentConfig `yaml:"components"`
}

// headerColumns returns where metadata captions and values start. The value
// column defaults to the one right of the caption.
func (s *SheetConfig) headerColumns() (caption, value int) {
	if s.HeaderValueStartCol != nil {
		return s.HeaderCaptionStartCol, *s.HeaderValueStartCol
	}
	return s.HeaderCaptionStartCol, s.HeaderCaptionStartCol + 1
}

// ComponentConfig is one table placed on a sheet.
type ComponentConfig struct {
	ID         string            `yaml:"id"`
	Query      string            `yaml:"query"`
	Source     DataSource        `yaml:"-"`
	Columns    []*ColumnBinding  `yaml:"columns"`
	HeaderRows []HeaderRowConfig `yaml:"header_rows"`
	FooterRows []HeaderRowConfig `yaml:"footer_rows"`
	// HeaderKeys overrides the column keys written as the header record in
	// flat output.
	HeaderKeys   []string `yaml:"header_keys"`
	FreezeColumn *int     `yaml:"freeze_column"`
	Autosize     *bool    `yaml:"autosize"`

	HeaderStyle  *StyleTemplate `yaml:"header_style"`
	FooterStyle  *StyleTemplate `yaml:"footer_style"`
	ContentStyle *StyleTemplate `yaml:"content_style"`
	ParentStyle  *StyleTemplate `yaml:"parent_style"`
	// RowStyle is used on odd rows. Nil leaves them unstyled.
	RowStyle *StyleTemplate `yaml:"row_style"`
}

// Keys returns the visible column keys in order.
func (c *ComponentConfig) Keys() []string {
	keys := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		keys[i] = col.Key
	}
	return keys
}

func (c *ComponentConfig) autosize() bool {
	return c.Autosize == nil || *c.Autosize
}

// Accessor reads the raw value of one column from a data item.
type Accessor func(item interface{}) (interface{}, error)

// CellFormatterFunc overrides the formatted text of a cell. A nil result
// keeps the type specific rendering.
type CellFormatterFunc func(value interface{}, item interface{}, key string) interface{}

// ColumnBinding binds a column key to its accessor, type and formatting
// parameters. Bindings are read-only once a run starts.
type ColumnBinding struct {
	Key                string   `yaml:"key"`
	Header             string   `yaml:"header"`
	Type               DataType `yaml:"type"`
	Prefix             string   `yaml:"prefix"`
	Suffix             string   `yaml:"suffix"`
	ThousandsSeparator bool     `yaml:"thousands_separator"`
	FormatterName      string   `yaml:"formatter"`
	BoolFormatterName  string   `yaml:"bool_formatter"`

	Accessor      Accessor          `yaml:"-"`
	Formatter     CellFormatterFunc `yaml:"-"`
	BoolFormatter CellFormatterFunc `yaml:"-"`
}

// Caption returns the header text of the column.
func (b *ColumnBinding) Caption() string {
	if b.Header != "" {
		return b.Header
	}
	return b.Key
}

// HeaderRow supplies captions for a header or footer row by column key.
type HeaderRow interface {
	Caption(key string) string
}

// HeaderRowFunc adapts a function to HeaderRow.
type HeaderRowFunc func(key string) string

func (f HeaderRowFunc) Caption(key string) string { return f(key) }

// HeaderRowConfig describes one header or footer row.
type HeaderRowConfig struct {
	// Captions runs parallel to the component's columns.
	Captions    []string     `yaml:"captions"`
	Row         HeaderRow    `yaml:"-"`
	MergeGroups []MergeGroup `yaml:"merge_groups"`
}

// MergeGroup collapses the columns from StartKey to EndKey into one cell
// showing Caption. Keys match case-insensitively.
type MergeGroup struct {
	StartKey string `yaml:"start"`
	EndKey   string `yaml:"end"`
	Caption  string `yaml:"caption"`
}

// MergedRegion is an inclusive, zero based cell range.
type MergedRegion struct {
	StartRow, EndRow int
	StartCol, EndCol int
}

func (r MergedRegion) valid() bool {
	return r.StartRow >= 0 && r.StartCol >= 0 && r.StartRow <= r.EndRow && r.StartCol <= r.EndCol
}

// ColumnSpan is an inclusive zero based column range. In YAML it is written
// as a two element list.
type ColumnSpan struct {
	From, To int
}

// UnmarshalYAML decodes [from, to].
func (s *ColumnSpan) UnmarshalYAML(node *yaml.Node) error {
	var bounds []int
	if err := node.Decode(&bounds); err != nil {
		return err
	}
	if len(bounds) != 2 {
		return fmt.Errorf("column span needs two values, got %d", len(bounds))
	}
	s.From, s.To = bounds[0], bounds[1]
	return nil
}

// KeyValue is one caption/value pair of a metadata block.
type KeyValue struct {
	Caption string
	Value   string
}

// OrderedPairs keeps caption/value pairs in declaration order. In YAML it
// is written as a mapping.
type OrderedPairs []KeyValue

// UnmarshalYAML keeps the key order of a YAML mapping.
func (p *OrderedPairs) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping of caption to value", node.Line)
	}
	pairs := make(OrderedPairs, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		pairs = append(pairs, KeyValue{
			Caption: node.Content[i].Value,
			Value:   node.Content[i+1].Value,
		})
	}
	*p = pairs
	return nil
}

func sanitizeSheetName(name string) string {
	replacer := strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "(", "]", ")")
	name = strings.Trim(replacer.Replace(name), "'")
	runes := []rune(name)
	if len(runes) > maxSheetNameLength {
		runes = runes[:maxSheetNameLength]
	}
	return string(runes)
}
