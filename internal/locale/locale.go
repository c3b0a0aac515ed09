// Package locale provides the culture-aware number parsing and formatting
// used when templates print numbers or read numeric literals.
package locale

import (
	"math"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Locale holds the separators of one culture.
type Locale struct {
	tag     language.Tag
	decimal string
	group   string
}

// Invariant formats numbers with a dot and groups with a comma regardless of
// culture.
var Invariant = &Locale{tag: language.Und, decimal: ".", group: ","}

var cache sync.Map

// New returns the locale for a BCP 47 tag such as "en-US" or "de-DE". The
// empty string yields Invariant.
func New(name string) (*Locale, error) {
	if name == "" {
		return Invariant, nil
	}
	tag, err := language.Parse(name)
	if err != nil {
		return nil, err
	}
	return ForTag(tag), nil
}

// ForTag returns the locale for a parsed language tag.
func ForTag(tag language.Tag) *Locale {
	key := tag.String()
	if l, ok := cache.Load(key); ok {
		return l.(*Locale)
	}
	p := message.NewPrinter(tag)
	sample := []rune(p.Sprintf("%v", number.Decimal(1234.5, number.MinFractionDigits(1))))
	l := &Locale{tag: tag, decimal: ".", group: ""}
	if n := len(sample); n >= 3 && unicode.IsDigit(sample[0]) && unicode.IsDigit(sample[n-1]) {
		i := n - 2
		for i > 0 && !unicode.IsDigit(sample[i]) {
			i--
		}
		if sep := string(sample[i+1 : n-1]); sep != "" {
			l.decimal = sep
		}
		j := 1
		for j < n && !unicode.IsDigit(sample[j]) {
			j++
		}
		if j <= i {
			l.group = string(sample[1:j])
		}
	}
	actual, _ := cache.LoadOrStore(key, l)
	return actual.(*Locale)
}

func (l *Locale) String() string {
	if l.tag == language.Und {
		return "invariant"
	}
	return l.tag.String()
}

// Tag returns the language tag of the locale.
func (l *Locale) Tag() language.Tag { return l.tag }

// DecimalSeparator returns the string between integer and fraction digits.
func (l *Locale) DecimalSeparator() string { return l.decimal }

// GroupSeparator returns the thousands separator, which may be empty.
func (l *Locale) GroupSeparator() string { return l.group }

// ParseFloat reads a number written in this locale. Input that is not a
// valid number in the locale is retried with invariant rules.
func (l *Locale) ParseFloat(s string) (float64, bool) {
	if norm, ok := l.normalize(s); ok {
		if f, err := strconv.ParseFloat(norm, 64); err == nil {
			return f, true
		}
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}

// ParseDecimal is like ParseFloat but keeps full precision.
func (l *Locale) ParseDecimal(s string) (decimal.Decimal, bool) {
	if norm, ok := l.normalize(s); ok {
		if d, err := decimal.NewFromString(norm); err == nil {
			return d, true
		}
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	return d, err == nil
}

// normalize rewrites a localized number into invariant form. Group
// separators are only accepted between complete groups of three digits.
func (l *Locale) normalize(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	intPart, frac, hasFrac := strings.Cut(s, l.decimal)
	if hasFrac && strings.Contains(frac, l.decimal) {
		return "", false
	}
	if l.group != "" && strings.Contains(intPart, l.group) {
		if hasFrac && strings.Contains(frac, l.group) {
			return "", false
		}
		sign := ""
		if strings.HasPrefix(intPart, "-") || strings.HasPrefix(intPart, "+") {
			sign, intPart = intPart[:1], intPart[1:]
		}
		groups := strings.Split(intPart, l.group)
		for i, g := range groups {
			if !allDigits(g) || (i == 0 && (len(g) == 0 || len(g) > 3)) || (i > 0 && len(g) != 3) {
				return "", false
			}
		}
		intPart = sign + strings.Join(groups, "")
	}
	if !hasFrac {
		return intPart, true
	}
	return intPart + "." + frac, true
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FormatFloat prints f with the locale's decimal separator and no
// trailing zeros.
func (l *Locale) FormatFloat(f float64, bitSize int) string {
	switch {
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case math.IsNaN(f):
		return "NaN"
	}
	return l.localize(strconv.FormatFloat(f, 'f', -1, bitSize))
}

// FormatDecimal prints d with the locale's decimal separator.
func (l *Locale) FormatDecimal(d decimal.Decimal) string {
	return l.localize(d.String())
}

func (l *Locale) localize(s string) string {
	if l.decimal == "." {
		return s
	}
	return strings.Replace(s, ".", l.decimal, 1)
}
