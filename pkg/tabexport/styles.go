package tabexport

import (
	"strings"

	"github.com/xuri/excelize/v2"
)

// StyleTemplate defines basic styling of a cell.
type StyleTemplate struct {
	Font      *FontTemplate      `yaml:"font"`
	Fill      *FillTemplate      `yaml:"fill"`
	Alignment *AlignmentTemplate `yaml:"alignment"`
	Border    *BorderTemplate    `yaml:"border"`
}

type FontTemplate struct {
	Bold   bool    `yaml:"bold"`
	Italic bool    `yaml:"italic"`
	Size   float64 `yaml:"size"`
	Color  string  `yaml:"color"` // Hex color
}

type FillTemplate struct {
	Color string `yaml:"color"` // Hex color
}

type AlignmentTemplate struct {
	Horizontal string `yaml:"horizontal"` // center, left, right
	Vertical   string `yaml:"vertical"`   // top, center, bottom
	WrapText   bool   `yaml:"wrap_text"`
}

// BorderTemplate draws a thin border on all four sides.
type BorderTemplate struct {
	Color string `yaml:"color"`
}

const (
	colorHeaderFill  = "32566E"
	colorValueFill   = "D1DCE3"
	colorContentFill = "E4EAEE"
	colorParentFill  = "BDCBD3"
	colorWhite       = "FFFFFF"
	colorBlack       = "000000"
)

func DefaultTitleStyle() *StyleTemplate {
	return &StyleTemplate{Font: &FontTemplate{Bold: true, Size: 14}}
}

func DefaultGeneratedByStyle() *StyleTemplate {
	return &StyleTemplate{Font: &FontTemplate{Bold: true, Size: 10}}
}

// DefaultHeaderCaptionStyle is used for metadata captions.
func DefaultHeaderCaptionStyle() *StyleTemplate {
	return &StyleTemplate{
		Font:   &FontTemplate{Bold: true, Color: colorWhite},
		Fill:   &FillTemplate{Color: colorHeaderFill},
		Border: &BorderTemplate{Color: colorBlack},
	}
}

func DefaultHeaderValueStyle() *StyleTemplate {
	return &StyleTemplate{
		Fill:      &FillTemplate{Color: colorValueFill},
		Alignment: &AlignmentTemplate{Horizontal: "center"},
		Border:    &BorderTemplate{Color: colorBlack},
	}
}

func DefaultAdditionalValueStyle() *StyleTemplate {
	return &StyleTemplate{
		Fill:      &FillTemplate{Color: colorValueFill},
		Alignment: &AlignmentTemplate{Horizontal: "center", WrapText: true},
	}
}

// DefaultTableHeaderStyle is used for column header and footer rows.
func DefaultTableHeaderStyle() *StyleTemplate {
	return &StyleTemplate{
		Font:      &FontTemplate{Bold: true, Color: colorWhite},
		Fill:      &FillTemplate{Color: colorHeaderFill},
		Alignment: &AlignmentTemplate{Horizontal: "left"},
		Border:    &BorderTemplate{Color: colorWhite},
	}
}

func DefaultContentStyle() *StyleTemplate {
	return &StyleTemplate{Fill: &FillTemplate{Color: colorContentFill}}
}

func DefaultParentStyle() *StyleTemplate {
	return &StyleTemplate{
		Font: &FontTemplate{Bold: true},
		Fill: &FillTemplate{Color: colorParentFill},
	}
}

func orDefault(s *StyleTemplate, def func() *StyleTemplate) *StyleTemplate {
	if s != nil {
		return s
	}
	return def()
}

// styleKey is the comparable identity of a style request. Equal keys share
// one workbook style.
type styleKey struct {
	bold, italic bool
	size         float64
	fontColor    string
	fill         string
	horizontal   string
	vertical     string
	wrap         bool
	border       string
	hasBorder    bool
	numberFormat NumberFormat
}

func newStyleKey(tmpl *StyleTemplate, numFmt NumberFormat) styleKey {
	k := styleKey{numberFormat: numFmt}
	if tmpl == nil {
		return k
	}
	if tmpl.Font != nil {
		k.bold = tmpl.Font.Bold
		k.italic = tmpl.Font.Italic
		k.size = tmpl.Font.Size
		k.fontColor = normalizeColor(tmpl.Font.Color)
	}
	if tmpl.Fill != nil {
		k.fill = normalizeColor(tmpl.Fill.Color)
	}
	if tmpl.Alignment != nil {
		k.horizontal = tmpl.Alignment.Horizontal
		k.vertical = tmpl.Alignment.Vertical
		k.wrap = tmpl.Alignment.WrapText
	}
	if tmpl.Border != nil {
		k.hasBorder = true
		k.border = normalizeColor(tmpl.Border.Color)
		if k.border == "" {
			k.border = colorBlack
		}
	}
	return k
}

func (k styleKey) zero() bool {
	return k == styleKey{}
}

func normalizeColor(c string) string {
	return strings.ToUpper(strings.TrimPrefix(c, "#"))
}

// excelStyle converts a key into an excelize style.
func (k styleKey) excelStyle() *excelize.Style {
	style := &excelize.Style{}
	if k.bold || k.italic || k.size > 0 || k.fontColor != "" {
		style.Font = &excelize.Font{
			Bold:   k.bold,
			Italic: k.italic,
			Size:   k.size,
			Color:  k.fontColor,
		}
	}
	if k.fill != "" {
		style.Fill = excelize.Fill{
			Type:    "pattern",
			Color:   []string{k.fill},
			Pattern: 1,
		}
	}
	if k.horizontal != "" || k.vertical != "" || k.wrap {
		style.Alignment = &excelize.Alignment{
			Horizontal: k.horizontal,
			Vertical:   k.vertical,
			WrapText:   k.wrap,
		}
	}
	if k.hasBorder {
		style.Border = []excelize.Border{
			{Type: "left", Color: k.border, Style: 1},
			{Type: "top", Color: k.border, Style: 1},
			{Type: "bottom", Color: k.border, Style: 1},
			{Type: "right", Color: k.border, Style: 1},
		}
	}
	if k.numberFormat != "" {
		numFmt := string(k.numberFormat)
		style.CustomNumFmt = &numFmt
	}
	return style
}
