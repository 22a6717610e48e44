// FILE: lixenwraith/linelog/formatter/formatter.go
// Package formatter renders diagnostic entries and persisted line records.
package formatter

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/lixenwraith/linelog/sanitizer"
)

// Format flags for controlling output structure
const (
	FlagRaw           int64 = 0b001
	FlagShowTimestamp int64 = 0b010
	FlagShowLevel     int64 = 0b100
	FlagDefault             = FlagShowTimestamp | FlagShowLevel
)

// RecordTimeLayout is the timestamp layout of persisted line records (yyyy-MM-dd HH:mm:ss)
const RecordTimeLayout = "2006-01-02 15:04:05"

// Formatter manages the buffered formatting of entries
type Formatter struct {
	sanitizer       *sanitizer.Sanitizer
	format          string
	timestampFormat string
	showTimestamp   bool
	showLevel       bool
	buf             []byte
}

// New creates a formatter with the provided sanitizer, or a passthrough one
func New(s ...*sanitizer.Sanitizer) *Formatter {
	var san *sanitizer.Sanitizer
	if len(s) > 0 && s[0] != nil {
		san = s[0]
	} else {
		san = sanitizer.New()
	}
	return &Formatter{
		sanitizer:       san,
		format:          "txt",
		timestampFormat: time.RFC3339Nano,
		showTimestamp:   true,
		showLevel:       true,
		buf:             make([]byte, 0, 1024),
	}
}

// Type sets the output format ("txt", "json", or "raw")
func (f *Formatter) Type(format string) *Formatter {
	f.format = format
	return f
}

// TimestampFormat sets the timestamp layout of diagnostic entries
func (f *Formatter) TimestampFormat(format string) *Formatter {
	if format != "" {
		f.timestampFormat = format
	}
	return f
}

// ShowLevel sets whether to include level in output
func (f *Formatter) ShowLevel(show bool) *Formatter {
	f.showLevel = show
	return f
}

// ShowTimestamp sets whether to include timestamp in output
func (f *Formatter) ShowTimestamp(show bool) *Formatter {
	f.showTimestamp = show
	return f
}

// Format formats a diagnostic entry. Zero flags fall back to the configured options.
// The returned slice is reused by the next call.
func (f *Formatter) Format(flags int64, timestamp time.Time, level int64, args []any) []byte {
	if flags == 0 {
		if f.showTimestamp {
			flags |= FlagShowTimestamp
		}
		if f.showLevel {
			flags |= FlagShowLevel
		}
	}

	f.Reset()
	serializer := sanitizer.NewSerializer(f.format, f.sanitizer)

	if flags&FlagRaw != 0 || f.format == "raw" {
		for i, arg := range args {
			f.convertValue(&f.buf, arg, sanitizer.NewSerializer("raw", f.sanitizer), i > 0)
		}
		return f.buf
	}

	if f.format == "json" {
		return f.formatJSON(flags, timestamp, level, args, serializer)
	}
	return f.formatTxt(flags, timestamp, level, args, serializer)
}

// FormatRecord renders one persisted line record.
//
//	txt:  [2024-01-01 12:00:00 - 2024-01-01 12:00:05] hello world\n
//	json: {"start":"...","end":"...","buffer":"lines","text":"hello world"}\n
func (f *Formatter) FormatRecord(start, end time.Time, buffer, text string) []byte {
	f.Reset()

	if f.format == "json" {
		serializer := sanitizer.NewSerializer("json", f.sanitizer)
		f.buf = append(f.buf, `{"start":"`...)
		f.buf = start.AppendFormat(f.buf, RecordTimeLayout)
		f.buf = append(f.buf, `","end":"`...)
		f.buf = end.AppendFormat(f.buf, RecordTimeLayout)
		f.buf = append(f.buf, `","buffer":`...)
		serializer.WriteString(&f.buf, buffer)
		f.buf = append(f.buf, `,"text":`...)
		serializer.WriteString(&f.buf, text)
		f.buf = append(f.buf, '}', '\n')
		return f.buf
	}

	f.buf = append(f.buf, '[')
	f.buf = start.AppendFormat(f.buf, RecordTimeLayout)
	f.buf = append(f.buf, " - "...)
	f.buf = end.AppendFormat(f.buf, RecordTimeLayout)
	f.buf = append(f.buf, "] "...)
	f.buf = append(f.buf, f.sanitizer.Sanitize(text)...)
	f.buf = append(f.buf, '\n')
	return f.buf
}

// Reset clears the formatter buffer for reuse
func (f *Formatter) Reset() {
	f.buf = f.buf[:0]
}

// LevelToString converts integer level values to string
func LevelToString(level int64) string {
	switch level {
	case -4:
		return "DEBUG"
	case 0:
		return "INFO"
	case 4:
		return "WARN"
	case 8:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", level)
	}
}

func (f *Formatter) convertValue(buf *[]byte, v any, serializer *sanitizer.Serializer, needsSpace bool) {
	if needsSpace && len(*buf) > 0 {
		*buf = append(*buf, ' ')
	}

	switch val := v.(type) {
	case string:
		serializer.WriteString(buf, val)
	case []byte:
		serializer.WriteString(buf, string(val))
	case rune:
		var runeStr [utf8.UTFMax]byte
		n := utf8.EncodeRune(runeStr[:], val)
		serializer.WriteString(buf, string(runeStr[:n]))
	case int:
		serializer.WriteNumber(buf, strconv.Itoa(val))
	case int64:
		serializer.WriteNumber(buf, strconv.FormatInt(val, 10))
	case uint64:
		serializer.WriteNumber(buf, strconv.FormatUint(val, 10))
	case float64:
		serializer.WriteNumber(buf, strconv.FormatFloat(val, 'f', -1, 64))
	case bool:
		serializer.WriteBool(buf, val)
	case nil:
		serializer.WriteNil(buf)
	case time.Time:
		serializer.WriteString(buf, val.Format(f.timestampFormat))
	case error:
		serializer.WriteString(buf, val.Error())
	case fmt.Stringer:
		serializer.WriteString(buf, val.String())
	default:
		serializer.WriteComplex(buf, val)
	}
}

func (f *Formatter) formatJSON(flags int64, timestamp time.Time, level int64, args []any, serializer *sanitizer.Serializer) []byte {
	f.buf = append(f.buf, '{')
	needsComma := false

	if flags&FlagShowTimestamp != 0 {
		f.buf = append(f.buf, `"time":"`...)
		f.buf = timestamp.AppendFormat(f.buf, f.timestampFormat)
		f.buf = append(f.buf, '"')
		needsComma = true
	}

	if flags&FlagShowLevel != 0 {
		if needsComma {
			f.buf = append(f.buf, ',')
		}
		f.buf = append(f.buf, `"level":"`...)
		f.buf = append(f.buf, LevelToString(level)...)
		f.buf = append(f.buf, '"')
		needsComma = true
	}

	if len(args) > 0 {
		if needsComma {
			f.buf = append(f.buf, ',')
		}
		f.buf = append(f.buf, `"fields":[`...)
		for i, arg := range args {
			if i > 0 {
				f.buf = append(f.buf, ',')
			}
			f.convertValue(&f.buf, arg, serializer, false)
		}
		f.buf = append(f.buf, ']')
	}

	f.buf = append(f.buf, '}', '\n')
	return f.buf
}

func (f *Formatter) formatTxt(flags int64, timestamp time.Time, level int64, args []any, serializer *sanitizer.Serializer) []byte {
	needsSpace := false

	if flags&FlagShowTimestamp != 0 {
		f.buf = timestamp.AppendFormat(f.buf, f.timestampFormat)
		needsSpace = true
	}

	if flags&FlagShowLevel != 0 {
		if needsSpace {
			f.buf = append(f.buf, ' ')
		}
		f.buf = append(f.buf, LevelToString(level)...)
		needsSpace = true
	}

	for _, arg := range args {
		f.convertValue(&f.buf, arg, serializer, needsSpace)
		needsSpace = true
	}

	f.buf = append(f.buf, '\n')
	return f.buf
}
