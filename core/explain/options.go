package explain

import (
	"fmt"
	"strings"

	qerrors "github.com/FocuswithJustin/QuranScope/core/errors"
)

// Style is the presentation style requested from the explanation service.
type Style string

// Styles understood by the explanation service.
const (
	Balanced   Style = "balanced"
	TLDR       Style = "tldr"
	Bullets    Style = "bullets"
	Study      Style = "study"
	Youth      Style = "youth"
	Reflection Style = "reflection"
	Linguistic Style = "linguistic"
	Context    Style = "context"
)

// Styles lists every style in display order.
var Styles = []Style{Balanced, TLDR, Bullets, Study, Youth, Reflection, Linguistic, Context}

// Length is the requested explanation length.
type Length string

// Lengths understood by the explanation service.
const (
	Short  Length = "short"
	Medium Length = "medium"
)

// Options selects style and length. The zero value means balanced/short.
type Options struct {
	Style  Style  `json:"style" yaml:"style"`
	Length Length `json:"length,omitempty" yaml:"length"`
}

// DefaultOptions returns balanced/short.
func DefaultOptions() Options {
	return Options{Style: Balanced, Length: Short}
}

// Normalize lower-cases both fields and fills defaults.
func (o Options) Normalize() Options {
	o.Style = Style(strings.ToLower(strings.TrimSpace(string(o.Style))))
	o.Length = Length(strings.ToLower(strings.TrimSpace(string(o.Length))))
	if o.Style == "" {
		o.Style = Balanced
	}
	if o.Length == "" {
		o.Length = Short
	}
	return o
}

// Validate reports an unknown style or length.
func (o Options) Validate() error {
	n := o.Normalize()
	if !validStyle(n.Style) {
		return qerrors.NewValidation("style", fmt.Sprintf("unknown style %q", o.Style))
	}
	if n.Length != Short && n.Length != Medium {
		return qerrors.NewValidation("length", fmt.Sprintf("unknown length %q (want short or medium)", o.Length))
	}
	return nil
}

func validStyle(s Style) bool {
	for _, known := range Styles {
		if s == known {
			return true
		}
	}
	return false
}

// LengthApplies reports whether the style takes a length. tldr and bullets
// have a fixed size.
func (o Options) LengthApplies() bool {
	s := o.Normalize().Style
	return s != TLDR && s != Bullets
}

// Wire returns the options as sent to the service: normalized, with Length
// omitted when it does not apply.
func (o Options) Wire() Options {
	n := o.Normalize()
	if !n.LengthApplies() {
		n.Length = ""
	}
	return n
}
