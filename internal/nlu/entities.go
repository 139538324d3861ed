package nlu

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Entity type names. The order of [EntityTypes] is the extraction order.
const (
	EntityNumber        = "number"
	EntityNumbers       = "numbers"
	EntityPercentage    = "percentage"
	EntityColor         = "color"
	EntityTime          = "time"
	EntityDate          = "date"
	EntityFileExtension = "fileExtension"
	EntityURL           = "url"
	EntityEmail         = "email"
	EntityAppName       = "appName"
	EntityTheme         = "theme"
)

// EntityTypes lists the built-in entity types in extraction order.
var EntityTypes = []string{
	EntityNumber,
	EntityPercentage,
	EntityColor,
	EntityTime,
	EntityDate,
	EntityFileExtension,
	EntityURL,
	EntityEmail,
	EntityAppName,
	EntityTheme,
}

// IsBuiltin reports whether name is a built-in entity type.
func IsBuiltin(name string) bool {
	if name == EntityNumbers {
		return true
	}
	for _, t := range EntityTypes {
		if t == name {
			return true
		}
	}
	return false
}

// Entities maps entity names to values. Numbers and percentages are int,
// "numbers" is []int, everything else is a string. Decoding from JSON keeps
// those types: integral numbers become int and arrays of them []int.
type Entities map[string]any

// UnmarshalJSON implements [json.Unmarshaler].
func (e *Entities) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		*e = nil
		return nil
	}
	out := make(Entities, len(raw))
	for k, v := range raw {
		out[k] = fromJSON(v)
	}
	*e = out
	return nil
}

// fromJSON converts a value decoded with UseNumber into the types
// [ExtractEntities] produces.
func fromJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return int(n)
		}
		f, _ := x.Float64()
		return f
	case []any:
		ints := make([]int, 0, len(x))
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = fromJSON(item)
			if n, ok := out[i].(int); ok {
				ints = append(ints, n)
			}
		}
		if len(x) > 0 && len(ints) == len(x) {
			return ints
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = fromJSON(item)
		}
		return out
	}
	return v
}

// Has reports whether name is present with a non-empty value.
func (e Entities) Has(name string) bool {
	v, ok := e[name]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

// String returns the value of name rendered as a string.
func (e Entities) String(name string) string {
	v, ok := e[name]
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == math.Trunc(x) {
			return strconv.FormatInt(int64(x), 10)
		}
	}
	return fmt.Sprint(v)
}

// Int returns the integer value of name. It accepts int, float64,
// json.Number and numeric strings.
func (e Entities) Int(name string) (int, bool) {
	switch x := e[name].(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), x == math.Trunc(x)
	case json.Number:
		n, err := x.Int64()
		return int(n), err == nil
	case string:
		return ParseNumber(x)
	}
	return 0, false
}

// Clone returns a shallow copy of e. A nil receiver yields an empty map.
func (e Entities) Clone() Entities {
	out := make(Entities, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Merge copies every entry of other into e, overwriting existing keys.
func (e Entities) Merge(other Entities) {
	for k, v := range other {
		e[k] = v
	}
}

var (
	percentRe = regexp.MustCompile(`\b(\d+|(?:(?:` + numberWordAlternation() + `)[\s-]+)?(?:` + numberWordAlternation() + `))\s*(?:%|percent\b)`)
	colorRe   = regexp.MustCompile(`#(?:[0-9a-f]{6}|[0-9a-f]{3})\b|\b(?:red|green|blue|yellow|orange|purple|pink|black|white|gray|grey|brown|cyan|magenta|teal|navy|violet|indigo|gold|silver)\b`)
	timeRe    = regexp.MustCompile(`\b\d{1,2}:\d{2}(?:\s*(?:am|pm))?\b|\b\d{1,2}\s*(?:am|pm)\b|\b(?:noon|midnight|morning|afternoon|evening|tonight)\b`)
	dateRe    = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}/\d{1,2}(?:/\d{2,4})?\b|\b(?:today|tomorrow|yesterday|(?:next|last|this) (?:week|month|year)|monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b|\b(?:january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sep|sept|oct|nov|dec)\s+\d{1,2}(?:st|nd|rd|th)?\b`)
	extRe     = regexp.MustCompile(`\.(` + extAlternation + `)\b|\b(` + extAlternation + `)\s+files?\b`)
	urlRe     = regexp.MustCompile(`https?://[^\s]+|(?:^|\s)((?:www\.)?[a-z0-9-]+(?:\.[a-z0-9-]+)*\.(?:com|org|net|io|dev|edu|gov|app|co|ai|de|uk)\b(?:/[^\s]*)?)`)
	emailRe   = regexp.MustCompile(`[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`)
)

const extAlternation = `txt|md|pdf|docx|doc|xlsx|xls|csv|json|yaml|yml|xml|html|css|js|tsx|ts|jsx|go|py|rb|java|cpp|rs|sh|png|jpe?g|gif|svg|mp3|mp4|wav|zip|tar|gz`

// ExtractEntities returns every built-in entity found in utterance. Types are
// checked in [EntityTypes] order and each type yields at most one value,
// except that numbers additionally keep the full ordered list under
// [EntityNumbers].
func ExtractEntities(utterance string) Entities {
	text := Normalize(utterance)
	out := make(Entities)
	if text == "" {
		return out
	}

	if nums := numbersFromTokens(Tokenize(text)); len(nums) > 0 {
		out[EntityNumber] = nums[0]
		out[EntityNumbers] = nums
	}
	if m := percentRe.FindStringSubmatch(text); m != nil {
		if n, ok := ParseNumber(m[1]); ok && n >= 0 && n <= 100 {
			out[EntityPercentage] = n
		}
	}
	if m := colorRe.FindString(text); m != "" {
		out[EntityColor] = m
	}
	if m := timeRe.FindString(text); m != "" {
		out[EntityTime] = m
	}
	if m := dateRe.FindString(text); m != "" {
		out[EntityDate] = m
	}
	if m := extRe.FindStringSubmatch(text); m != nil {
		ext := m[1]
		if ext == "" {
			ext = m[2]
		}
		out[EntityFileExtension] = ext
	}
	if m := urlRe.FindStringSubmatch(text); m != nil {
		u := m[1]
		if u == "" {
			u = m[0]
		}
		out[EntityURL] = strings.TrimRight(u, ".,;!?")
	}
	if m := emailRe.FindString(text); m != "" {
		out[EntityEmail] = m
	}
	if id, ok := Resolve(AppNames, text); ok {
		out[EntityAppName] = id
	}
	if id, ok := Resolve(Themes, text); ok {
		out[EntityTheme] = id
	}
	return out
}

// CanonicalValue converts a raw captured value for entity name into the form
// [ExtractEntities] would have produced. global holds the utterance-wide
// extraction and is used for types whose punctuation is lost in tokenised
// text. ok is false when name is a built-in type and raw is not a valid value
// of that type; raw is returned unchanged in that case. Names that are not
// built-in types are free text and always valid.
func CanonicalValue(name, raw string, global Entities) (value any, ok bool) {
	switch name {
	case EntityAppName:
		if id, ok := Resolve(AppNames, raw); ok {
			return id, true
		}
		return raw, false
	case EntityTheme:
		if id, ok := Resolve(Themes, raw); ok {
			return id, true
		}
		return raw, false
	case EntityNumber, EntityPercentage:
		tokens := Tokenize(raw)
		if n := len(tokens); n > 1 && (tokens[n-1] == "percent" || tokens[n-1] == "percentage") {
			tokens = tokens[:n-1]
		}
		n, ok := ParseNumber(strings.Join(tokens, " "))
		if !ok || name == EntityPercentage && (n < 0 || n > 100) {
			return raw, false
		}
		return n, true
	case EntityColor, EntityTime, EntityDate, EntityFileExtension, EntityURL, EntityEmail:
		if g := global.String(name); g != "" && strings.Join(Tokenize(g), " ") == strings.Join(Tokenize(raw), " ") {
			return g, true
		}
		if fullMatch(typeRes[name], Normalize(raw)) {
			return Normalize(raw), true
		}
		return raw, false
	}
	return raw, true
}

var typeRes = map[string]*regexp.Regexp{
	EntityColor:         colorRe,
	EntityTime:          timeRe,
	EntityDate:          dateRe,
	EntityFileExtension: regexp.MustCompile(`^(?:` + extAlternation + `)$`),
	EntityURL:           urlRe,
	EntityEmail:         emailRe,
}

func fullMatch(re *regexp.Regexp, s string) bool {
	loc := re.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}
