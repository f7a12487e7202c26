package monitor

import (
	"errors"
	"testing"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Tag
	}{
		{name: "empty", in: "", want: Tag{}},
		{name: "ignore", in: "-", want: Tag{Ignore: true}},
		{name: "bare label", in: "Score", want: Tag{Label: "Score"}},
		{name: "bare flag", in: "index", want: Tag{Flags: FlagShowIndex}},
		{
			name: "full",
			in:   "label=Score, format=%.1f,processor=Fmt,event=Changed,flags=index|nolabel,order=2,group=Player,indent=4,color=#ffcc00,if=Alive",
			want: Tag{
				Label:       "Score",
				Format:      "%.1f",
				Processor:   "Fmt",
				UpdateEvent: "Changed",
				Flags:       FlagShowIndex | FlagHideLabel,
				Order:       2,
				Group:       "Player",
				Indent:      4,
				IndentSet:   true,
				Color:       "#ffcc00",
				VisibleIf:   "Alive",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTag(tt.in)
			if err != nil {
				t.Fatalf("ParseTag() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseTag() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseTag_Malformed(t *testing.T) {
	inputs := []string{
		"order=first",
		"indent=-2",
		"flags=index|bogus",
		"color=red",
		"colour=#ffffff",
		"Score,extra",
	}
	for _, in := range inputs {
		if _, err := ParseTag(in); !errors.Is(err, ErrMalformedTag) {
			t.Errorf("ParseTag(%q) error = %v, want ErrMalformedTag", in, err)
		}
	}
}

func TestNewFormatData(t *testing.T) {
	d := DefaultDefaults()

	// an Indent without IndentSet falls back to the default
	fd := NewFormatData("Health", Tag{Indent: 7}, d)
	if fd.Label != "Health" {
		t.Errorf("Label = %q, want %q", fd.Label, "Health")
	}
	if fd.ElementIndent != d.ElementIndent {
		t.Errorf("ElementIndent = %d, want %d", fd.ElementIndent, d.ElementIndent)
	}

	fd = NewFormatData("Health", Tag{Label: "HP", Indent: 0, IndentSet: true, Color: "#123456", Flags: FlagShowIndex}, d)
	if fd.Label != "HP" {
		t.Errorf("Label = %q, want %q", fd.Label, "HP")
	}
	if fd.ElementIndent != 0 {
		t.Errorf("ElementIndent = %d, want 0", fd.ElementIndent)
	}
	if fd.Colors.Value != "#123456" {
		t.Errorf("Colors.Value = %q, want %q", fd.Colors.Value, "#123456")
	}
	if !fd.ShowIndex {
		t.Error("ShowIndex = false, want true")
	}
}

func TestFlagsString(t *testing.T) {
	if got := (FlagShowIndex | FlagReadOnly).String(); got != "index|readonly" {
		t.Errorf("String() = %q, want %q", got, "index|readonly")
	}
}
