package tabexport

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goodsign/monday"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
	"gopkg.in/yaml.v3"
)

// Locale drives number grouping, decimal marks and date names. The zero
// value behaves as English.
type Locale struct {
	Tag language.Tag
}

var (
	English = Locale{Tag: language.English}
	German  = Locale{Tag: language.German}
)

// ParseLocale parses a BCP 47 tag such as "en", "de" or "de-AT".
func ParseLocale(s string) (Locale, error) {
	if strings.TrimSpace(s) == "" {
		return English, nil
	}
	tag, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(s), "_", "-"))
	if err != nil {
		return Locale{}, fmt.Errorf("parse locale %q: %w", s, err)
	}
	return Locale{Tag: tag}, nil
}

func (l Locale) tag() language.Tag {
	if l.Tag == language.Und {
		return language.English
	}
	return l.Tag
}

func (l Locale) String() string {
	return l.tag().String()
}

// UnmarshalYAML decodes a locale from its tag string.
func (l *Locale) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseLocale(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

type localeData struct {
	printer        *message.Printer
	group, decimal string
}

// locales caches printers and separators per language tag.
var locales sync.Map

func (l Locale) data() *localeData {
	tag := l.tag()
	if d, ok := locales.Load(tag); ok {
		return d.(*localeData)
	}
	d := &localeData{printer: message.NewPrinter(tag)}
	d.group, d.decimal = separatorsOf(d.printer)
	actual, _ := locales.LoadOrStore(tag, d)
	return actual.(*localeData)
}

func (l Locale) printer() *message.Printer {
	return l.data().printer
}

// Separators returns the grouping and decimal marks of the locale.
func (l Locale) Separators() (group, decimal string) {
	d := l.data()
	return d.group, d.decimal
}

// separatorsOf derives the marks from how p renders a sample value.
func separatorsOf(p *message.Printer) (group, decimal string) {
	sample := p.Sprintf("%v", number.Decimal(1234.5, number.Scale(1)))
	one := strings.IndexRune(sample, '1')
	two := strings.IndexRune(sample, '2')
	four := strings.IndexRune(sample, '4')
	five := strings.LastIndex(sample, "5")
	if one < 0 || two <= one || four < 0 || five <= four {
		return ",", "."
	}
	return sample[one+1 : two], sample[four+1 : five]
}

// FormatInt renders v with or without grouping separators.
func (l Locale) FormatInt(v int64, grouping bool) string {
	if grouping {
		return l.printer().Sprintf("%v", number.Decimal(v))
	}
	return l.printer().Sprintf("%v", number.Decimal(v, number.NoSeparator()))
}

// FormatFloat renders v with exactly two decimal places.
func (l Locale) FormatFloat(v float64, grouping bool) string {
	if grouping {
		return l.printer().Sprintf("%v", number.Decimal(v, number.Scale(2)))
	}
	return l.printer().Sprintf("%v", number.Decimal(v, number.Scale(2), number.NoSeparator()))
}

// Unlocalize turns locale formatted number text into the canonical form
// understood by strconv: grouping removed and the decimal mark replaced by
// ".". For English that strips ","; for German it strips "." and turns ","
// into ".".
func (l Locale) Unlocalize(text string) string {
	group, decimal := l.Separators()
	s := strings.TrimSpace(text)
	if group != "" {
		s = strings.ReplaceAll(s, group, "")
	}
	if decimal != "." {
		s = strings.ReplaceAll(s, decimal, ".")
	}
	return strings.ReplaceAll(s, " ", "")
}

// ParseInt parses locale formatted integer text.
func (l Locale) ParseInt(text string) (int64, error) {
	canonical := l.Unlocalize(text)
	v, err := strconv.ParseInt(canonical, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse integer %q for locale %s: %w", text, l, err)
	}
	return v, nil
}

// ParseFloat parses locale formatted decimal text.
func (l Locale) ParseFloat(text string) (float64, error) {
	canonical := l.Unlocalize(text)
	v, err := strconv.ParseFloat(canonical, 64)
	if err != nil {
		return 0, fmt.Errorf("parse decimal %q for locale %s: %w", text, l, err)
	}
	return v, nil
}

// Relocalize re-renders locale integer text after a parse round trip.
func (l Locale) Relocalize(text string, grouping bool) (string, error) {
	v, err := l.ParseInt(text)
	if err != nil {
		return "", err
	}
	return l.FormatInt(v, grouping), nil
}

var mondayLocales = func() map[monday.Locale]bool {
	m := make(map[monday.Locale]bool)
	for _, loc := range monday.ListLocales() {
		m[loc] = true
	}
	return m
}()

// FormatDate renders t with a Go layout, translating weekday and month
// names into the locale's language when supported.
func (l Locale) FormatDate(t time.Time, layout string) string {
	base, _ := l.tag().Base()
	region, _ := l.tag().Region()
	loc := monday.Locale(base.String() + "_" + region.String())
	if !mondayLocales[loc] {
		loc = monday.LocaleEnUS
	}
	return monday.Format(t, layout, loc)
}
