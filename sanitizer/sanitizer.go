// FILE: lixenwraith/linelog/sanitizer/sanitizer.go
// Package sanitizer neutralizes runes in captured text before it reaches a log file or
// the console. Rules pair a filter mask with a transform; the first matching rule wins.
package sanitizer

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/davecgh/go-spew/spew"
)

// Filter flags for rune matching
const (
	FilterNonPrintable uint64 = 1 << iota // strconv.IsPrint is false
	FilterControl                         // unicode.IsControl
	FilterWhitespace                      // unicode.IsSpace
	FilterLineBreak                       // '\n', '\r', U+2028, U+2029
)

// Transform flags
const (
	TransformStrip      uint64 = 1 << iota // Drop the rune
	TransformHexEncode                     // UTF-8 bytes as "<XXYY>"
	TransformJSONEscape                    // JSON backslash escape
	TransformSpace                         // Replace with a single ' '
)

// PolicyPreset names a pre-configured rule set
type PolicyPreset string

const (
	PolicyRaw  PolicyPreset = "raw"  // passthrough
	PolicyTxt  PolicyPreset = "txt"  // non-printable runes hex encoded
	PolicyJSON PolicyPreset = "json" // control runes JSON escaped
	PolicyLine PolicyPreset = "line" // line breaks folded to spaces, other control runes hex encoded
)

type rule struct {
	filter    uint64
	transform uint64
}

var policyRules = map[PolicyPreset][]rule{
	PolicyRaw:  {},
	PolicyTxt:  {{filter: FilterNonPrintable, transform: TransformHexEncode}},
	PolicyJSON: {{filter: FilterControl, transform: TransformJSONEscape}},
	PolicyLine: {
		{filter: FilterLineBreak, transform: TransformSpace},
		{filter: FilterNonPrintable, transform: TransformHexEncode},
	},
}

// filterOrder keeps filter evaluation deterministic
var filterOrder = []uint64{FilterNonPrintable, FilterControl, FilterWhitespace, FilterLineBreak}

var filterCheckers = map[uint64]func(rune) bool{
	FilterNonPrintable: func(r rune) bool { return !strconv.IsPrint(r) },
	FilterControl:      unicode.IsControl,
	FilterWhitespace:   unicode.IsSpace,
	FilterLineBreak: func(r rune) bool {
		switch r {
		case '\n', '\r', '\u2028', '\u2029':
			return true
		}
		return false
	},
}

// Sanitizer provides chainable text sanitization
type Sanitizer struct {
	rules []rule
	buf   []byte
}

// New creates a passthrough Sanitizer
func New() *Sanitizer {
	return &Sanitizer{
		rules: []rule{},
		buf:   make([]byte, 0, 256),
	}
}

// Rule appends a custom rule
func (s *Sanitizer) Rule(filter uint64, transform uint64) *Sanitizer {
	s.rules = append(s.rules, rule{filter: filter, transform: transform})
	return s
}

// Policy appends the rules of a preset. Unknown presets add nothing.
func (s *Sanitizer) Policy(preset PolicyPreset) *Sanitizer {
	if rules, ok := policyRules[preset]; ok {
		s.rules = append(s.rules, rules...)
	}
	return s
}

// IsPolicy reports whether name is a known preset
func IsPolicy(name string) bool {
	_, ok := policyRules[PolicyPreset(name)]
	return ok
}

// Sanitize applies all configured rules to data
func (s *Sanitizer) Sanitize(data string) string {
	if len(s.rules) == 0 {
		return data
	}
	s.buf = s.buf[:0]

	for _, r := range data {
		matched := false
		for _, rl := range s.rules {
			if matchesFilter(r, rl.filter) {
				applyTransform(&s.buf, r, rl.transform)
				matched = true
				break
			}
		}
		if !matched {
			s.buf = utf8.AppendRune(s.buf, r)
		}
	}

	return string(s.buf)
}

func matchesFilter(r rune, filterMask uint64) bool {
	for _, flag := range filterOrder {
		if filterMask&flag != 0 && filterCheckers[flag](r) {
			return true
		}
	}
	return false
}

func applyTransform(buf *[]byte, r rune, transformMask uint64) {
	switch {
	case transformMask&TransformStrip != 0:

	case transformMask&TransformSpace != 0:
		*buf = append(*buf, ' ')

	case transformMask&TransformHexEncode != 0:
		var runeBytes [utf8.UTFMax]byte
		n := utf8.EncodeRune(runeBytes[:], r)
		*buf = append(*buf, '<')
		*buf = append(*buf, hex.EncodeToString(runeBytes[:n])...)
		*buf = append(*buf, '>')

	case transformMask&TransformJSONEscape != 0:
		appendJSONRune(buf, r)
	}
}

func appendJSONRune(buf *[]byte, r rune) {
	switch r {
	case '\n':
		*buf = append(*buf, '\\', 'n')
	case '\r':
		*buf = append(*buf, '\\', 'r')
	case '\t':
		*buf = append(*buf, '\\', 't')
	case '\b':
		*buf = append(*buf, '\\', 'b')
	case '\f':
		*buf = append(*buf, '\\', 'f')
	case '"':
		*buf = append(*buf, '\\', '"')
	case '\\':
		*buf = append(*buf, '\\', '\\')
	default:
		if r < 0x20 || r == 0x7f {
			*buf = append(*buf, fmt.Sprintf("\\u%04x", r)...)
		} else {
			*buf = utf8.AppendRune(*buf, r)
		}
	}
}

// Serializer implements format-specific value output on top of a Sanitizer
type Serializer struct {
	format    string
	sanitizer *Sanitizer
}

// NewSerializer creates a serializer for "txt", "json" or "raw"
func NewSerializer(format string, san *Sanitizer) *Serializer {
	if san == nil {
		san = New()
	}
	return &Serializer{
		format:    format,
		sanitizer: san,
	}
}

// WriteString writes s with format-specific quoting and escaping
func (se *Serializer) WriteString(buf *[]byte, s string) {
	switch se.format {
	case "json":
		*buf = append(*buf, '"')
		for _, r := range se.sanitizer.Sanitize(s) {
			if r < 0x20 || r == '"' || r == '\\' || r == 0x7f {
				appendJSONRune(buf, r)
				continue
			}
			*buf = utf8.AppendRune(*buf, r)
		}
		*buf = append(*buf, '"')

	case "txt":
		sanitized := se.sanitizer.Sanitize(s)
		if !se.NeedsQuotes(sanitized) {
			*buf = append(*buf, sanitized...)
			return
		}
		*buf = append(*buf, '"')
		for i := 0; i < len(sanitized); i++ {
			if sanitized[i] == '"' || sanitized[i] == '\\' {
				*buf = append(*buf, '\\')
			}
			*buf = append(*buf, sanitized[i])
		}
		*buf = append(*buf, '"')

	default:
		*buf = append(*buf, se.sanitizer.Sanitize(s)...)
	}
}

// WriteNumber writes an already formatted number
func (se *Serializer) WriteNumber(buf *[]byte, n string) {
	*buf = append(*buf, n...)
}

// WriteBool writes a boolean value
func (se *Serializer) WriteBool(buf *[]byte, b bool) {
	*buf = strconv.AppendBool(*buf, b)
}

// WriteNil writes a nil value
func (se *Serializer) WriteNil(buf *[]byte) {
	if se.format == "raw" {
		*buf = append(*buf, "nil"...)
		return
	}
	*buf = append(*buf, "null"...)
}

// WriteComplex writes structs, maps and pointers. Raw output uses a compact spew dump.
func (se *Serializer) WriteComplex(buf *[]byte, v any) {
	if se.format != "raw" {
		se.WriteString(buf, fmt.Sprintf("%+v", v))
		return
	}
	var b bytes.Buffer
	dumper := &spew.ConfigState{
		Indent:                  " ",
		MaxDepth:                10,
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		SortKeys:                true,
	}
	dumper.Fdump(&b, v)
	*buf = append(*buf, bytes.TrimSpace(b.Bytes())...)
}

// NeedsQuotes reports whether s must be quoted in the current format
func (se *Serializer) NeedsQuotes(s string) bool {
	switch se.format {
	case "json":
		return true
	case "txt":
		if len(s) == 0 {
			return true
		}
		for _, r := range s {
			if unicode.IsSpace(r) || !unicode.IsPrint(r) {
				return true
			}
			switch r {
			case '"', '\'', '\\', '$', '`', '!', '&', '|', ';',
				'(', ')', '<', '>', '*', '?', '[', ']', '{', '}',
				'~', '#', '%', '=':
				return true
			}
		}
		return false
	default:
		return false
	}
}
