package service

import (
	"fmt"
	"unicode/utf8"

	"github.com/locvowork/employee_management_sample/exportgateway/pkg/tabexport"
)

// ExportOptions are per-request export settings. Zero fields fall back to
// the template and then to the service defaults.
type ExportOptions struct {
	Type        tabexport.ExportType
	Locale      string
	FileName    string
	GeneratedBy string
	Delimiter   rune
}

// ParseExportOptions validates raw request values. Empty values stay unset.
func ParseExportOptions(typ, locale, fileName, generatedBy, delimiter string) (ExportOptions, error) {
	var opts ExportOptions
	if typ != "" {
		t, err := tabexport.ParseExportType(typ)
		if err != nil {
			return opts, err
		}
		opts.Type = t
	}
	if locale != "" {
		if _, err := tabexport.ParseLocale(locale); err != nil {
			return opts, err
		}
		opts.Locale = locale
	}
	if delimiter != "" {
		r, size := utf8.DecodeRuneInString(delimiter)
		if size != len(delimiter) {
			return opts, fmt.Errorf("delimiter must be a single character, got %q", delimiter)
		}
		opts.Delimiter = r
	}
	opts.FileName = fileName
	opts.GeneratedBy = generatedBy
	return opts, nil
}

// apply writes the request options into cfg. Request values win over what
// a template declares; service defaults only fill what both leave empty.
func (o ExportOptions) apply(cfg *tabexport.ExportConfig, defaults ExportOptions) error {
	if o.Type != "" {
		cfg.Type = o.Type
	} else if cfg.Type == "" {
		cfg.Type = defaults.Type
	}

	locale := o.Locale
	if locale == "" && cfg.Locale == (tabexport.Locale{}) {
		locale = defaults.Locale
	}
	if locale != "" {
		l, err := tabexport.ParseLocale(locale)
		if err != nil {
			return err
		}
		cfg.Locale = l
	}

	if o.FileName != "" {
		cfg.FileName = o.FileName
	} else if cfg.FileName == "" {
		cfg.FileName = defaults.FileName
	}
	if o.GeneratedBy != "" {
		cfg.GeneratedBy = o.GeneratedBy
	} else if cfg.GeneratedBy == "" {
		cfg.GeneratedBy = defaults.GeneratedBy
	}
	return nil
}
