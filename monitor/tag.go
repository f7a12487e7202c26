package monitor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// TagKey is the struct tag key read by the member scanner.
const TagKey = "monitor"

// ErrMalformedTag is returned by [ParseTag] for tags it cannot interpret.
var ErrMalformedTag = errors.New("malformed monitor tag")

// Flags are boolean switches carried by a [Tag].
type Flags uint8

const (
	// FlagShowIndex prefixes collection elements with their position.
	FlagShowIndex Flags = 1 << iota
	// FlagHideLabel omits the "<label>: " prefix.
	FlagHideLabel
	// FlagReadOnly suppresses the setter even when one exists.
	FlagReadOnly
)

var flagNames = map[string]Flags{
	"index":    FlagShowIndex,
	"nolabel":  FlagHideLabel,
	"readonly": FlagReadOnly,
}

// Has reports whether all bits of f2 are set in f.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// String renders the flags in tag syntax, e.g. "index|nolabel".
func (f Flags) String() string {
	var parts []string
	for _, name := range []string{"index", "nolabel", "readonly"} {
		if f.Has(flagNames[name]) {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// Tag is the parsed form of a monitor marker.
//
// The zero Tag marks a member with every setting at its default: the label
// falls back to the member name and, unless IndentSet is true, the indent
// to the configured element indent.
type Tag struct {
	Label       string
	Format      string
	Processor   string
	UpdateEvent string
	Group       string
	Color       string
	VisibleIf   string
	Flags       Flags
	Order       int
	// Indent is the element indent in spaces. It only applies when
	// IndentSet is true.
	Indent    int
	IndentSet bool
	// Ignore is set by the "-" tag.
	Ignore bool
}

// ParseTag parses the value of a `monitor:"..."` struct tag.
//
// The grammar is a comma separated list of key=value pairs. A bare first
// token that is not a flag name is taken as the label, so `monitor:"Score"`
// and `monitor:"label=Score"` are equivalent. Recognised keys are label,
// format, processor, event, flags, order, group, indent, color and if.
// Values cannot contain commas.
func ParseTag(s string) (Tag, error) {
	var tag Tag
	s = strings.TrimSpace(s)
	if s == "" {
		return tag, nil
	}
	if s == "-" {
		tag.Ignore = true
		return tag, nil
	}

	for i, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		key, value, ok := strings.Cut(token, "=")
		if !ok {
			if f, isFlag := flagNames[token]; isFlag {
				tag.Flags |= f
				continue
			}
			if i == 0 {
				tag.Label = token
				continue
			}
			return Tag{}, fmt.Errorf("%w: unexpected token %q", ErrMalformedTag, token)
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "label":
			tag.Label = value
		case "format":
			tag.Format = value
		case "processor":
			tag.Processor = value
		case "event":
			tag.UpdateEvent = value
		case "group":
			tag.Group = value
		case "if":
			tag.VisibleIf = value
		case "color":
			if !validColor(value) {
				return Tag{}, fmt.Errorf("%w: color %q must be #RRGGBB or #RRGGBBAA", ErrMalformedTag, value)
			}
			tag.Color = value
		case "order":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Tag{}, fmt.Errorf("%w: order %q is not an integer", ErrMalformedTag, value)
			}
			tag.Order = n
		case "indent":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return Tag{}, fmt.Errorf("%w: indent %q must be a non-negative integer", ErrMalformedTag, value)
			}
			tag.Indent, tag.IndentSet = n, true
		case "flags":
			for _, name := range strings.Split(value, "|") {
				f, known := flagNames[strings.TrimSpace(name)]
				if !known {
					return Tag{}, fmt.Errorf("%w: unknown flag %q", ErrMalformedTag, name)
				}
				tag.Flags |= f
			}
		default:
			return Tag{}, fmt.Errorf("%w: unknown key %q", ErrMalformedTag, key)
		}
	}

	return tag, nil
}

// validColor accepts "#RRGGBB" and "#RRGGBBAA".
func validColor(s string) bool {
	if len(s) != 7 && len(s) != 9 {
		return false
	}
	if s[0] != '#' {
		return false
	}
	for _, c := range s[1:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// ValidColor reports whether s is a colour the markup accepts.
func ValidColor(s string) bool {
	return validColor(s)
}
