// Package watermark rewrites still images with a semi-transparent text band
// along the bottom edge. Video has no rewrite path; callers find that out
// through Capability before choosing how to respond.
package watermark

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/dmitrijs2005/eventsnap/internal/common"
	"github.com/dmitrijs2005/eventsnap/internal/server/tier"
)

// Kind is the media kind offered for rewriting.
type Kind int

const (
	KindImage Kind = iota
	KindVideo
)

// KindOf maps a media record's video flag to a Kind.
func KindOf(isVideo bool) Kind {
	if isVideo {
		return KindVideo
	}
	return KindImage
}

// Capability tells whether the engine can rewrite a kind of media.
type Capability int

const (
	Supported Capability = iota
	Unsupported
)

func (c Capability) String() string {
	if c == Supported {
		return "supported"
	}
	return "unsupported"
}

// Style is the band geometry for a tier.
type Style struct {
	// HeightRatio is the band height as a fraction of the image height.
	HeightRatio float64
	// Opacity of the dark band, 0..1.
	Opacity float64
	// MinHeight keeps the band legible on small images.
	MinHeight int
}

// StyleFor returns the band style of a tier. Freebie gets the heavier band.
func StyleFor(pkg tier.PackageType) Style {
	if pkg == tier.Freebie {
		return Style{HeightRatio: 0.12, Opacity: 0.6, MinHeight: 24}
	}
	return Style{HeightRatio: 0.08, Opacity: 0.4, MinHeight: 16}
}

// Rewritten is an encoded watermarked image.
type Rewritten struct {
	Data        []byte
	ContentType string
}

type Engine struct {
	text string
}

func New(text string) *Engine {
	return &Engine{text: text}
}

func (e *Engine) Capability(kind Kind) Capability {
	if kind == KindImage {
		return Supported
	}
	return Unsupported
}

// Rewrite watermarks data for the given tier and re-encodes it in its source
// format. Kinds without a rewrite path yield common.ErrWatermarkUnsupported.
func (e *Engine) Rewrite(data []byte, kind Kind, pkg tier.PackageType) (*Rewritten, error) {
	if e.Capability(kind) != Supported {
		rewrites.WithLabelValues("unsupported").Inc()
		return nil, common.ErrWatermarkUnsupported
	}

	start := time.Now()
	out, err := e.rewriteImage(data, StyleFor(pkg))
	if err != nil {
		rewrites.WithLabelValues("error").Inc()
		return nil, err
	}
	rewrites.WithLabelValues("ok").Inc()
	rewriteDuration.Observe(time.Since(start).Seconds())
	return out, nil
}

func (e *Engine) rewriteImage(data []byte, style Style) (*Rewritten, error) {
	_, formatName, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("detect image format: %w", err)
	}
	format, err := imaging.FormatFromExtension(formatName)
	if err != nil {
		return nil, fmt.Errorf("unsupported image format %q: %w", formatName, err)
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	dst := e.apply(src, style)

	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, dst, format, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return &Rewritten{Data: buf.Bytes(), ContentType: contentType(format)}, nil
}

// apply composites the band and the centred text onto a copy of src.
func (e *Engine) apply(src image.Image, style Style) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	bandH := BandHeight(h, style)
	band := imaging.New(w, bandH, color.NRGBA{A: 255})
	dst := imaging.Overlay(src, band, image.Pt(0, h-bandH), style.Opacity)

	if e.text == "" {
		return dst
	}

	label := renderText(e.text)
	targetH := int(math.Round(float64(bandH) * 0.6))
	if targetH < 1 {
		return dst
	}
	label = imaging.Resize(label, 0, targetH, imaging.Lanczos)
	if label.Bounds().Dx() > w {
		label = imaging.Resize(label, w, 0, imaging.Lanczos)
	}

	lw, lh := label.Bounds().Dx(), label.Bounds().Dy()
	pos := image.Pt((w-lw)/2, h-bandH+(bandH-lh)/2)
	return imaging.Overlay(dst, label, pos, 0.9)
}

// BandHeight is the band height in pixels for an image of height h.
func BandHeight(h int, style Style) int {
	bandH := int(math.Round(float64(h) * style.HeightRatio))
	if bandH < style.MinHeight {
		bandH = style.MinHeight
	}
	if bandH > h {
		bandH = h
	}
	return bandH
}

// renderText draws text in the bitmap face on a transparent canvas.
func renderText(text string) *image.NRGBA {
	face := basicfont.Face7x13
	d := &font.Drawer{Face: face}
	width := d.MeasureString(text).Ceil() + 4
	height := face.Height + 4

	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))
	d.Dst = canvas
	d.Src = image.NewUniform(color.White)
	d.Dot = fixed.P(2, 2+face.Ascent)
	d.DrawString(text)
	return canvas
}

func contentType(f imaging.Format) string {
	switch f {
	case imaging.JPEG:
		return "image/jpeg"
	case imaging.PNG:
		return "image/png"
	case imaging.GIF:
		return "image/gif"
	case imaging.TIFF:
		return "image/tiff"
	case imaging.BMP:
		return "image/bmp"
	default:
		return "application/octet-stream"
	}
}
