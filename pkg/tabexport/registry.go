package tabexport

import (
	"strings"
	"sync"
)

var (
	formattersMu sync.RWMutex
	formatters   = map[string]CellFormatterFunc{
		"upper": func(value, _ interface{}, _ string) interface{} {
			return strings.ToUpper(rawText(value))
		},
		"lower": func(value, _ interface{}, _ string) interface{} {
			return strings.ToLower(rawText(value))
		},
		"trim": func(value, _ interface{}, _ string) interface{} {
			return strings.TrimSpace(rawText(value))
		},
		"yes_no":  boolText("Yes", "No"),
		"ja_nein": boolText("Ja", "Nein"),
		"check":   boolText("X", ""),
	}
)

// RegisterFormatter makes fn available to templates under name. A later
// registration replaces an earlier one.
func RegisterFormatter(name string, fn CellFormatterFunc) {
	formattersMu.Lock()
	defer formattersMu.Unlock()
	formatters[name] = fn
}

func lookupFormatter(name string) (CellFormatterFunc, bool) {
	formattersMu.RLock()
	defer formattersMu.RUnlock()
	fn, ok := formatters[name]
	return fn, ok
}

// boolText renders booleans with fixed words. Non boolean values are left
// to the type specific rendering.
func boolText(yes, no string) CellFormatterFunc {
	return func(value, _ interface{}, _ string) interface{} {
		b, err := toBool(value)
		if err != nil {
			return nil
		}
		if b {
			return yes
		}
		return no
	}
}
