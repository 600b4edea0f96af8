package diff

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/fogleman/gg"
)

// PixelComparer compares two PNG files pixel by pixel.
type PixelComparer struct {
	opts Options
}

// NewPixelComparer creates a comparer with opts.
func NewPixelComparer(opts Options) *PixelComparer {
	opts.normalize()
	return &PixelComparer{opts: opts}
}

// Options returns the effective comparer options.
func (p *PixelComparer) Options() Options { return p.opts }

// Compare decodes both files and diffs them.
func (p *PixelComparer) Compare(ctx context.Context, referencePath, actualPath string) (*Comparison, error) {
	ref, err := decodePNG(referencePath)
	if err != nil {
		return nil, err
	}
	act, err := decodePNG(actualPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.CompareImages(ref, act), nil
}

// CompareImages diffs two decoded images over the union of their bounds.
// Pixels covered by only one of the images count as mismatched.
func (p *PixelComparer) CompareImages(ref, act image.Image) *Comparison {
	rb, ab := ref.Bounds(), act.Bounds()
	w := max(rb.Dx(), ab.Dx())
	h := max(rb.Dy(), ab.Dy())
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	tol := int(p.opts.Tolerance)
	mismatched := 0
	changed := image.Rectangle{}

	for y := range h {
		for x := range w {
			rp := image.Pt(rb.Min.X+x, rb.Min.Y+y)
			ap := image.Pt(ab.Min.X+x, ab.Min.Y+y)
			inRef, inAct := rp.In(rb), ap.In(ab)

			var rc, ac color.NRGBA
			if inRef {
				rc = color.NRGBAModel.Convert(ref.At(rp.X, rp.Y)).(color.NRGBA)
			}
			if inAct {
				ac = color.NRGBAModel.Convert(act.At(ap.X, ap.Y)).(color.NRGBA)
			}

			if inRef && inAct {
				if d := channelDiff(rc, ac); d <= tol {
					out.SetNRGBA(x, y, p.unchanged(rc))
					continue
				}
			}

			mismatched++
			changed = changed.Union(image.Rect(x, y, x+1, y+1))
			base := ac
			if !inAct {
				base = rc
			}
			out.SetNRGBA(x, y, p.errorPixel(base, channelDiff(rc, ac)))
		}
	}

	var img image.Image = out
	if p.opts.Outline && !changed.Empty() {
		img = outline(out, changed, p.opts.ErrorColor)
	}

	total := w * h
	pct := 0.0
	if total > 0 {
		pct = math.Round(float64(mismatched)/float64(total)*100*100) / 100
	}
	return &Comparison{
		MismatchPercentage: pct,
		DiffImage:          img,
		DimensionDifference: image.Pt(
			ab.Dx()-rb.Dx(),
			ab.Dy()-rb.Dy(),
		),
		ChangedBounds: changed,
	}
}

func (p *PixelComparer) unchanged(c color.NRGBA) color.NRGBA {
	c.A = uint8(float64(c.A) * p.opts.Transparency)
	return c
}

func (p *PixelComparer) errorPixel(base color.NRGBA, diff int) color.NRGBA {
	e := p.opts.ErrorColor
	var c color.NRGBA
	switch p.opts.ErrorType {
	case Flat, FlatDifferentIntensity:
		c = color.NRGBA{R: e.R, G: e.G, B: e.B, A: 255}
	default:
		c = color.NRGBA{
			R: tint(base.R, e.R),
			G: tint(base.G, e.G),
			B: tint(base.B, e.B),
			A: base.A,
		}
		if c.A == 0 {
			c.A = 255
		}
	}
	if p.opts.ErrorType == FlatDifferentIntensity || p.opts.ErrorType == MovementDifferentIntensity {
		c.A = uint8(min(255, max(64, diff)))
	}
	return c
}

// tint mixes a channel value with the matching error color channel.
func tint(v, e uint8) uint8 {
	return uint8((float64(v)*float64(e)/255 + float64(e)) / 2)
}

// channelDiff is the largest per-channel difference between a and b.
func channelDiff(a, b color.NRGBA) int {
	return max(
		absInt(int(a.R)-int(b.R)),
		absInt(int(a.G)-int(b.G)),
		absInt(int(a.B)-int(b.B)),
		absInt(int(a.A)-int(b.A)),
	)
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// outline strokes a rectangle around the changed region.
func outline(img image.Image, r image.Rectangle, c color.RGBA) image.Image {
	dc := gg.NewContextForImage(img)
	dc.SetRGBA255(int(c.R), int(c.G), int(c.B), 255)
	dc.SetLineWidth(2)
	pad := 4.0
	dc.DrawRectangle(
		float64(r.Min.X)-pad,
		float64(r.Min.Y)-pad,
		float64(r.Dx())+2*pad,
		float64(r.Dy())+2*pad,
	)
	dc.Stroke()
	return dc.Image()
}

func decodePNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}
