package assets

import (
	"fmt"
	"strconv"
)

// Size is a target size in pixels.
type Size struct {
	Width  int
	Height int
}

// MaximumSize asks for the original, unscaled image. It is a sentinel
// distinct from every concrete size, including 0x0.
var MaximumSize = Size{Width: -1, Height: -1}

// IsMaximum reports whether s is the MaximumSize sentinel.
func (s Size) IsMaximum() bool {
	return s == MaximumSize
}

// Validate rejects sizes that are neither MaximumSize nor strictly positive.
func (s Size) Validate() error {
	if s.IsMaximum() {
		return nil
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("invalid target size %dx%d", s.Width, s.Height)
	}
	return nil
}

func (s Size) String() string {
	if s.IsMaximum() {
		return "original"
	}
	return strconv.Itoa(s.Width) + "x" + strconv.Itoa(s.Height)
}

// ContentMode controls how an image's aspect ratio is fitted to a target size.
type ContentMode string

const (
	// AspectFit scales the image so its larger dimension fits the target.
	AspectFit ContentMode = "aspectFit"
	// AspectFill scales the image so it completely fills the target.
	AspectFill ContentMode = "aspectFill"

	// DefaultContentMode is used when a caller does not pick one.
	DefaultContentMode = AspectFit
)

// Valid reports whether m is a known content mode.
func (m ContentMode) Valid() bool {
	return m == AspectFit || m == AspectFill
}

// ParseContentMode accepts the canonical names plus the short forms "fit"
// and "fill". An empty string yields DefaultContentMode.
func ParseContentMode(s string) (ContentMode, error) {
	switch s {
	case "":
		return DefaultContentMode, nil
	case "fit", string(AspectFit):
		return AspectFit, nil
	case "fill", string(AspectFill):
		return AspectFill, nil
	}
	return "", fmt.Errorf("unknown content mode %q", s)
}
