package diff

import "image/color"

// ErrorType selects how changed pixels are painted on the diff image.
type ErrorType string

const (
	// Flat paints changed pixels with the error color.
	Flat ErrorType = "flat"
	// Movement tints the actual pixel toward the error color, so moved
	// content stays recognisable.
	Movement ErrorType = "movement"
	// FlatDifferentIntensity is Flat with alpha scaled by the difference.
	FlatDifferentIntensity ErrorType = "flatDifferentIntensity"
	// MovementDifferentIntensity is Movement with alpha scaled by the difference.
	MovementDifferentIntensity ErrorType = "movementDifferentIntensity"
)

// Options configures the pixel comparer. It is built once at startup and
// passed to NewPixelComparer.
type Options struct {
	ErrorColor   color.RGBA
	ErrorType    ErrorType
	Transparency float64 // alpha multiplier for unchanged pixels, 0..1
	Tolerance    uint8   // max per-channel difference still counted as equal
	Outline      bool    // outline the changed region on the diff image
}

// DefaultOptions mirrors the classic resemble settings: magenta error
// color, movement rendering, 0.3 transparency and a tolerance of 16.
func DefaultOptions() Options {
	return Options{
		ErrorColor:   color.RGBA{R: 255, G: 0, B: 255, A: 255},
		ErrorType:    Movement,
		Transparency: 0.3,
		Tolerance:    16,
		Outline:      true,
	}
}

func (o *Options) normalize() {
	if o.ErrorType == "" {
		o.ErrorType = Movement
	}
	if o.Transparency < 0 {
		o.Transparency = 0
	}
	if o.Transparency > 1 {
		o.Transparency = 1
	}
	if o.ErrorColor.A == 0 {
		o.ErrorColor.A = 255
	}
}
