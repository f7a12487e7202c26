package monitor

// Colors is the palette used when rendering values.
// An empty entry means "no markup".
type Colors struct {
	Label string `yaml:"label" json:"label,omitempty"`
	Value string `yaml:"value" json:"value,omitempty"`
	True  string `yaml:"true" json:"true,omitempty"`
	False string `yaml:"false" json:"false,omitempty"`
	Null  string `yaml:"null" json:"null,omitempty"`
	X     string `yaml:"x" json:"x,omitempty"`
	Y     string `yaml:"y" json:"y,omitempty"`
	Z     string `yaml:"z" json:"z,omitempty"`
	W     string `yaml:"w" json:"w,omitempty"`
}

// DefaultColors returns the built-in palette. Labels and plain values are
// left uncoloured.
func DefaultColors() Colors {
	return Colors{
		True:  "#4ec94e",
		False: "#e05252",
		Null:  "#9e9e9e",
		X:     "#ff6b6b",
		Y:     "#7bd88f",
		Z:     "#6ab0ff",
		W:     "#e0c060",
	}
}

// merge fills empty entries of c from d.
func (c Colors) merge(d Colors) Colors {
	pick := func(a, b string) string {
		if a != "" {
			return a
		}
		return b
	}
	return Colors{
		Label: pick(c.Label, d.Label),
		Value: pick(c.Value, d.Value),
		True:  pick(c.True, d.True),
		False: pick(c.False, d.False),
		Null:  pick(c.Null, d.Null),
		X:     pick(c.X, d.X),
		Y:     pick(c.Y, d.Y),
		Z:     pick(c.Z, d.Z),
		W:     pick(c.W, d.W),
	}
}

// Defaults are the settings-provider values a [Tag] falls back to.
type Defaults struct {
	ElementIndent int
	ShowIndex     bool
	Colors        Colors
}

// DefaultDefaults returns the defaults used when no settings are supplied.
func DefaultDefaults() Defaults {
	return Defaults{
		ElementIndent: 2,
		Colors:        DefaultColors(),
	}
}

// FormatData is the immutable display metadata of one monitored member.
type FormatData struct {
	Label         string
	Format        string
	ShowIndex     bool
	HideLabel     bool
	ElementIndent int
	Group         string
	Order         int
	Colors        Colors
}

// NewFormatData derives the display metadata for member from its tag and
// the configured defaults.
func NewFormatData(member string, tag Tag, d Defaults) FormatData {
	label := tag.Label
	if label == "" {
		label = member
	}
	indent := d.ElementIndent
	if tag.IndentSet {
		indent = tag.Indent
	}

	colors := d.Colors
	if tag.Color != "" {
		colors.Value = tag.Color
	}

	return FormatData{
		Label:         label,
		Format:        tag.Format,
		ShowIndex:     d.ShowIndex || tag.Flags.Has(FlagShowIndex),
		HideLabel:     tag.Flags.Has(FlagHideLabel),
		ElementIndent: indent,
		Group:         tag.Group,
		Order:         tag.Order,
		Colors:        colors,
	}
}

// MergeColors overlays the non-empty entries of c onto the built-in palette.
func MergeColors(c Colors) Colors {
	return c.merge(DefaultColors())
}
