package tabexport

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DataType tags the semantic type of a column. Integer and Float have
// narrower aliases kept for configuration compatibility; Family collapses
// them onto the five dispatch families.
type DataType int

const (
	TypeText DataType = iota
	TypeInteger
	TypeLong
	TypeShort
	TypeFloat
	TypeDouble
	TypeBigDecimal
	TypeDate
	TypeBoolean
)

var dataTypeNames = map[DataType]string{
	TypeText:       "text",
	TypeInteger:    "integer",
	TypeLong:       "long",
	TypeShort:      "short",
	TypeFloat:      "float",
	TypeDouble:     "double",
	TypeBigDecimal: "bigdecimal",
	TypeDate:       "date",
	TypeBoolean:    "boolean",
}

// Family returns the formatting family of t. Unknown tags are Text.
func (t DataType) Family() DataType {
	switch t {
	case TypeInteger, TypeLong, TypeShort:
		return TypeInteger
	case TypeFloat, TypeDouble, TypeBigDecimal:
		return TypeFloat
	case TypeDate:
		return TypeDate
	case TypeBoolean:
		return TypeBoolean
	default:
		return TypeText
	}
}

func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("DataType(%d)", int(t))
}

// ParseDataType accepts the lower-case names used in templates plus a few
// common aliases ("int", "number", "bool", "string").
func ParseDataType(s string) (DataType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch key {
	case "", "string":
		return TypeText, nil
	case "int":
		return TypeInteger, nil
	case "number", "decimal":
		return TypeBigDecimal, nil
	case "bool":
		return TypeBoolean, nil
	}
	for t, name := range dataTypeNames {
		if name == key {
			return t, nil
		}
	}
	return TypeText, fmt.Errorf("unknown data type %q", s)
}

// UnmarshalYAML decodes a data type from its name.
func (t *DataType) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseDataType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalYAML encodes a data type as its name.
func (t DataType) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// ExportType selects the output encoding of a run.
type ExportType string

const (
	// ExportTypeXLS is the legacy spreadsheet flavour. It shares the workbook
	// encoding with ExportTypeXLSX and differs in extension and content type.
	ExportTypeXLS  ExportType = "xls"
	ExportTypeXLSX ExportType = "xlsx"
	ExportTypeCSV  ExportType = "csv"
)

// ParseExportType maps a user supplied name onto an ExportType. An empty
// string selects xlsx.
func ParseExportType(s string) (ExportType, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "", "xlsx", "structured", "structured-modern":
		return ExportTypeXLSX, nil
	case "xls", "structured-legacy":
		return ExportTypeXLS, nil
	case "csv", "flat":
		return ExportTypeCSV, nil
	}
	return "", fmt.Errorf("unknown export type %q", s)
}

// Flat reports whether t produces delimited text.
func (t ExportType) Flat() bool {
	return t == ExportTypeCSV
}

// Extension returns the file extension without the leading dot.
func (t ExportType) Extension() string {
	if t == "" {
		return string(ExportTypeXLSX)
	}
	return string(t)
}

// ContentType returns the MIME type of artifacts of this type.
func (t ExportType) ContentType() string {
	switch t {
	case ExportTypeCSV:
		return "text/csv; charset=utf-8"
	case ExportTypeXLS:
		return "application/vnd.ms-excel"
	default:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
}

// UnmarshalYAML decodes an export type from its name.
func (t *ExportType) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseExportType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
