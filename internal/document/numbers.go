package document

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Level is a nested item's indentation. The browser editor stores it as a
// data attribute, so documents in the wild carry it as a number or a string.
type Level int

// Pixels is an image width. Older saves carry the slider value as "300" or "300px".
type Pixels int

// Bytes is an attachment size in bytes.
type Bytes int64

func (l *Level) UnmarshalJSON(data []byte) error {
	n, ok := parseLenientInt(data)
	if !ok {
		*l = 0
		return nil
	}
	*l = Level(n)
	return nil
}

func (p *Pixels) UnmarshalJSON(data []byte) error {
	n, ok := parseLenientInt(data)
	if !ok {
		*p = DefaultImageWidth
		return nil
	}
	*p = Pixels(n)
	return nil
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	n, ok := parseLenientInt(data)
	if !ok {
		*b = 0
		return nil
	}
	*b = Bytes(n)
	return nil
}

// ParseLevel reads a level from editor markup, where it is a data attribute.
func ParseLevel(s string) Level {
	n, ok := parseLenientString(s)
	if !ok {
		return 0
	}
	return Level(n)
}

// ParsePixels reads a width slider value. Unparseable input yields the default width.
func ParsePixels(s string) Pixels {
	n, ok := parseLenientString(s)
	if !ok {
		return DefaultImageWidth
	}
	return Pixels(n)
}

func ParseBytes(s string) Bytes {
	n, _ := parseLenientString(s)
	return Bytes(n)
}

// parseLenientInt accepts a JSON number, a numeric string, or a string with a
// "px" suffix. Fractions are truncated. null and anything else report false.
func parseLenientInt(data []byte) (int64, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return 0, false
	}
	if data[0] != '"' {
		return parseNumber(string(data))
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return 0, false
	}
	return parseLenientString(s)
}

func parseLenientString(s string) (int64, bool) {
	return parseNumber(strings.TrimSuffix(strings.TrimSpace(s), "px"))
}

func parseNumber(raw string) (int64, bool) {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}
