package liquid

import (
	"math"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/fluidity/liquid/value"
)

// StandardFilters holds the built-in filters. Each exported method is a
// filter named in snake_case: DividedBy is divided_by.
type StandardFilters struct{}

// FilterDefaults declares the default arguments of the built-in filters.
func (StandardFilters) FilterDefaults() map[string][]any {
	return map[string][]any{
		"Join":          {" "},
		"Truncate":      {50, "..."},
		"Truncatewords": {15, "..."},
		"Replace":       {""},
		"ReplaceFirst":  {""},
		"Slice":         {1},
		"Sort":          {""},
		"Round":         {0},
	}
}

// String filters

func (StandardFilters) Upcase(ctx *Context, input any) any {
	if input == nil {
		return nil
	}
	return cases.Upper(ctx.Language()).String(ctx.Stringify(input))
}

func (StandardFilters) Downcase(ctx *Context, input any) any {
	if input == nil {
		return nil
	}
	return cases.Lower(ctx.Language()).String(ctx.Stringify(input))
}

// Capitalize upper-cases the first character and leaves the rest alone.
func (StandardFilters) Capitalize(ctx *Context, input any) any {
	s := ctx.Stringify(input)
	if s == "" {
		return s
	}
	runes := []rune(s)
	return cases.Upper(ctx.Language()).String(string(runes[0])) + string(runes[1:])
}

func (StandardFilters) Strip(ctx *Context, input any) string {
	return strings.TrimSpace(ctx.Stringify(input))
}

func (StandardFilters) Lstrip(ctx *Context, input any) string {
	return strings.TrimLeftFunc(ctx.Stringify(input), unicode.IsSpace)
}

func (StandardFilters) Rstrip(ctx *Context, input any) string {
	return strings.TrimRightFunc(ctx.Stringify(input), unicode.IsSpace)
}

func (StandardFilters) StripNewlines(ctx *Context, input any) string {
	return strings.NewReplacer("\r\n", "", "\n", "").Replace(ctx.Stringify(input))
}

var htmlTagRe = regexp.MustCompile(`(?s)<script.*?</script>|<!--.*?-->|<style.*?</style>|<.*?>`)

func (StandardFilters) StripHtml(ctx *Context, input any) string {
	return htmlTagRe.ReplaceAllString(ctx.Stringify(input), "")
}

func (StandardFilters) Append(ctx *Context, input any, suffix string) string {
	return ctx.Stringify(input) + suffix
}

func (StandardFilters) Prepend(ctx *Context, input any, prefix string) string {
	return prefix + ctx.Stringify(input)
}

func (StandardFilters) Replace(ctx *Context, input any, old, replacement string) string {
	s := ctx.Stringify(input)
	if old == "" {
		return s
	}
	return strings.ReplaceAll(s, old, replacement)
}

// ReplaceFirst replaces the first occurrence of pattern. Legacy syntax treats
// pattern as a regular expression.
func (StandardFilters) ReplaceFirst(ctx *Context, input any, pattern, replacement string) (string, error) {
	s := ctx.Stringify(input)
	if pattern == "" {
		return s, nil
	}
	if ctx.Syntax() == SyntaxLegacy {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return "", Errorf(ErrArgument, "Invalid pattern '%s': %v", pattern, err)
		}
		loc := re.FindStringIndex(s)
		if loc == nil {
			return s, nil
		}
		return s[:loc[0]] + replacement + s[loc[1]:], nil
	}
	return strings.Replace(s, pattern, replacement, 1), nil
}

func (f StandardFilters) Remove(ctx *Context, input any, s string) string {
	return f.Replace(ctx, input, s, "")
}

func (f StandardFilters) RemoveFirst(ctx *Context, input any, pattern string) (string, error) {
	return f.ReplaceFirst(ctx, input, pattern, "")
}

// Truncate shortens input to length characters, ellipsis included.
func (StandardFilters) Truncate(ctx *Context, input any, length int, ellipsis string) any {
	if input == nil {
		return nil
	}
	runes := []rune(ctx.Stringify(input))
	if len(runes) <= length {
		return string(runes)
	}
	keep := length - len([]rune(ellipsis))
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + ellipsis
}

func (StandardFilters) Truncatewords(ctx *Context, input any, words int, ellipsis string) any {
	if input == nil {
		return nil
	}
	s := ctx.Stringify(input)
	fields := strings.Fields(s)
	if words < 1 {
		words = 1
	}
	if len(fields) <= words {
		return s
	}
	return strings.Join(fields[:words], " ") + ellipsis
}

// Split divides input at pattern. Trailing empty strings are dropped.
func (StandardFilters) Split(ctx *Context, input any, pattern string) []any {
	s := ctx.Stringify(input)
	if s == "" {
		return []any{}
	}
	var parts []string
	if pattern == "" {
		for _, r := range s {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.Split(s, pattern)
	}
	for len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	out := make([]any, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&#39;")

func (StandardFilters) Escape(ctx *Context, input any) any {
	if input == nil {
		return nil
	}
	return htmlEscaper.Replace(ctx.Stringify(input))
}

var escapeOnceRe = regexp.MustCompile(`["><']|&(?:[a-zA-Z]+|#\d+);?|&`)

// EscapeOnce escapes HTML without touching existing entities.
func (StandardFilters) EscapeOnce(ctx *Context, input any) string {
	return escapeOnceRe.ReplaceAllStringFunc(ctx.Stringify(input), func(m string) string {
		if len(m) > 1 && m[0] == '&' && strings.HasSuffix(m, ";") {
			return m
		}
		if m[0] == '&' {
			return "&amp;" + m[1:]
		}
		return htmlEscaper.Replace(m)
	})
}

func (StandardFilters) NewlineToBr(ctx *Context, input any) string {
	return strings.ReplaceAll(ctx.Stringify(input), "\n", "<br />\n")
}

func (StandardFilters) UrlEncode(ctx *Context, input any) string {
	return url.QueryEscape(ctx.Stringify(input))
}

func (StandardFilters) UrlDecode(ctx *Context, input any) (string, error) {
	return url.QueryUnescape(ctx.Stringify(input))
}

// Default returns fallback when input is nil, false or empty.
func (StandardFilters) Default(input, fallback any) any {
	if !value.IsTruthy(input) || value.IsEmptyEnumerable(input) {
		return fallback
	}
	return input
}

// Collection filters

func (StandardFilters) Size(input any) int {
	n, _ := value.Len(input)
	return n
}

func (StandardFilters) First(input any) any {
	if s, ok := input.(string); ok {
		for _, r := range s {
			return string(r)
		}
		return nil
	}
	if items, ok := value.Iterate(input); ok && len(items) > 0 {
		return items[0]
	}
	return nil
}

func (StandardFilters) Last(input any) any {
	if s, ok := input.(string); ok {
		runes := []rune(s)
		if len(runes) == 0 {
			return nil
		}
		return string(runes[len(runes)-1])
	}
	if items, ok := value.Iterate(input); ok && len(items) > 0 {
		return items[len(items)-1]
	}
	return nil
}

func (StandardFilters) Join(ctx *Context, input any, glue string) (any, error) {
	items, ok := value.Iterate(input)
	if !ok {
		return input, nil
	}
	parts := make([]string, len(items))
	for i, it := range items {
		s, err := ctx.display(it, 0)
		if err != nil {
			return nil, err
		}
		parts[i] = s
	}
	return strings.Join(parts, glue), nil
}

// Sort orders a sequence, by property when one is given. Values that cannot
// be compared are ordered by their string form.
func (StandardFilters) Sort(ctx *Context, input any, property string) any {
	items, ok := value.Iterate(input)
	if !ok {
		return input
	}
	out := append([]any(nil), items...)
	key := func(v any) any {
		if property == "" {
			return v
		}
		m, _ := ctx.member(v, property)
		return m
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := key(out[i]), key(out[j])
		if a == nil || b == nil {
			return a != nil
		}
		c, err := value.Compare(a, b)
		if err != nil {
			return ctx.Stringify(a) < ctx.Stringify(b)
		}
		return c < 0
	})
	return out
}

func (StandardFilters) Reverse(input any) any {
	items, ok := value.Iterate(input)
	if !ok {
		return input
	}
	out := make([]any, len(items))
	for i, it := range items {
		out[len(items)-1-i] = it
	}
	return out
}

func (StandardFilters) Uniq(input any) any {
	items, ok := value.Iterate(input)
	if !ok {
		return input
	}
	var out []any
outer:
	for _, it := range items {
		for _, seen := range out {
			if value.Equal(seen, it) {
				continue outer
			}
		}
		out = append(out, it)
	}
	return out
}

func (StandardFilters) Compact(input any) any {
	items, ok := value.Iterate(input)
	if !ok {
		return input
	}
	out := []any{}
	for _, it := range items {
		if !value.IsNil(it) {
			out = append(out, it)
		}
	}
	return out
}

// Map returns the property of every element.
func (StandardFilters) Map(ctx *Context, input any, property string) (any, error) {
	items, ok := value.Iterate(input)
	if !ok {
		items = []any{input}
	}
	out := make([]any, 0, len(items))
	for _, it := range items {
		it, err := ctx.liquidize(it)
		if err != nil {
			return nil, err
		}
		m, _, err := ctx.memberOf(it, property)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Slice returns length elements or characters starting at start. A negative
// start counts from the end; legacy syntax clamps it to zero instead.
func (StandardFilters) Slice(ctx *Context, input any, start, length int) any {
	if input == nil {
		return nil
	}
	s, isString := input.(string)
	var items []any
	if !isString {
		var ok bool
		if items, ok = value.Iterate(input); !ok {
			s, isString = ctx.Stringify(input), true
		}
	}
	runes := []rune(s)
	n := len(items)
	if isString {
		n = len(runes)
	}
	if start < 0 {
		if ctx.Syntax() == SyntaxLegacy {
			start = 0
		} else {
			start += n
			if start < 0 {
				start = 0
			}
		}
	}
	if length < 0 {
		length = 0
	}
	end := start + length
	if start > n {
		start = n
	}
	if end > n {
		end = n
	}
	if isString {
		return string(runes[start:end])
	}
	return append([]any(nil), items[start:end]...)
}

// Math filters. All arithmetic goes through value.Arith.

// number converts a filter operand to a number. Numeric strings are parsed
// through the locale; anything else counts as zero.
func (ctx *Context) number(v any) any {
	if value.IsNumber(v) {
		return v
	}
	s, ok := v.(string)
	if !ok {
		return int32(0)
	}
	s = strings.TrimSpace(s)
	if integerRe.MatchString(s) {
		return parseInteger(s)
	}
	if d, ok := ctx.loc.ParseDecimal(s); ok {
		return d
	}
	return int32(0)
}

func (ctx *Context) arith(op value.Op, input, operand any) (any, error) {
	return value.Arith(op, ctx.number(input), ctx.number(operand))
}

// Plus adds operand. Legacy syntax concatenates when input is a string.
func (StandardFilters) Plus(ctx *Context, input, operand any) (any, error) {
	if s, ok := input.(string); ok && ctx.Syntax() == SyntaxLegacy {
		return s + ctx.Stringify(operand), nil
	}
	return ctx.arith(value.OpAdd, input, operand)
}

func (StandardFilters) Minus(ctx *Context, input, operand any) (any, error) {
	return ctx.arith(value.OpSub, input, operand)
}

// Times multiplies by operand. Legacy syntax repeats a string input.
func (StandardFilters) Times(ctx *Context, input, operand any) (any, error) {
	if s, ok := input.(string); ok && ctx.Syntax() == SyntaxLegacy {
		if n, ok := value.ToInt64(operand); ok && value.IsNumber(operand) && n >= 0 {
			return strings.Repeat(s, int(n)), nil
		}
	}
	return ctx.arith(value.OpMul, input, operand)
}

func (StandardFilters) DividedBy(ctx *Context, input, operand any) (any, error) {
	return ctx.arith(value.OpDiv, input, operand)
}

func (StandardFilters) Modulo(ctx *Context, input, operand any) (any, error) {
	return ctx.arith(value.OpMod, input, operand)
}

func (StandardFilters) Round(ctx *Context, input any, digits int) any {
	switch n := ctx.number(input).(type) {
	case decimal.Decimal:
		return n.Round(int32(digits))
	case float32, float64:
		f, _ := value.ToFloat64(n)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return f
		}
		p := math.Pow(10, float64(digits))
		return math.Round(f*p) / p
	default:
		return n
	}
}

func (StandardFilters) Ceil(ctx *Context, input any) any {
	return integral(ctx.number(input), math.Ceil, decimal.Decimal.Ceil)
}

func (StandardFilters) Floor(ctx *Context, input any) any {
	return integral(ctx.number(input), math.Floor, decimal.Decimal.Floor)
}

func integral(n any, ff func(float64) float64, df func(decimal.Decimal) decimal.Decimal) any {
	switch t := n.(type) {
	case decimal.Decimal:
		d := df(t)
		if d.IsInteger() && d.Abs().LessThan(decimal.NewFromInt(math.MaxInt64)) {
			return d.IntPart()
		}
		return d
	case float32, float64:
		f, _ := value.ToFloat64(t)
		f = ff(f)
		if f >= math.MinInt64 && f < math.MaxInt64 {
			return int64(f)
		}
		return f
	}
	return n
}

func (StandardFilters) Abs(ctx *Context, input any) (any, error) {
	n := ctx.number(input)
	if c, ok := value.CompareNumbers(n, int32(0)); ok && c < 0 {
		return value.Arith(value.OpSub, int32(0), n)
	}
	return n, nil
}

func (StandardFilters) AtLeast(ctx *Context, input, minimum any) any {
	a, b := ctx.number(input), ctx.number(minimum)
	if c, ok := value.CompareNumbers(a, b); ok && c < 0 {
		return b
	}
	return a
}

func (StandardFilters) AtMost(ctx *Context, input, maximum any) any {
	a, b := ctx.number(input), ctx.number(maximum)
	if c, ok := value.CompareNumbers(a, b); ok && c > 0 {
		return b
	}
	return a
}
