// Package compositor draws a title into a whitespace band above an image.
package compositor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"

	"titletoimagebot/internal/layout"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	MinSize         = 500
	FontScaleFactor = 16
	// MaxPixels bounds the prepared (possibly upscaled) source image.
	MaxPixels = 25_000_000
)

var (
	ErrEmptyTitle    = errors.New("title has no printable lines")
	ErrEmptyImage    = errors.New("image has no pixels")
	ErrImageTooLarge = errors.New("image is too large")
)

type Style struct {
	Background color.Color
	Foreground color.Color
}

func DefaultStyle() Style {
	return Style{
		Background: color.White,
		Foreground: color.Black,
	}
}

type Compositor struct {
	font  *opentype.Font
	style Style
}

// New parses fontData as a TrueType/OpenType font. An empty fontData selects Go Regular.
func New(fontData []byte, style Style) (*Compositor, error) {
	if len(fontData) == 0 {
		fontData = goregular.TTF
	}

	f, err := opentype.Parse(fontData)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}

	return &Compositor{font: f, style: style}, nil
}

// NewFromFile is New with the font read from path; an empty path selects Go Regular.
func NewFromFile(path string, style Style) (*Compositor, error) {
	if path == "" {
		return New(nil, style)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font file: %w", err)
	}

	return New(data, style)
}

type Result struct {
	Image    image.Image
	Upscaled bool
	Lines    []string
}

// Canvas is a source image prepared for composition: upscaled if needed and
// paired with a face sized for its width.
type Canvas struct {
	src      image.Image
	face     font.Face
	style    Style
	upscaled bool
}

func (c *Compositor) Prepare(src image.Image) (*Canvas, error) {
	bounds := src.Bounds()
	if bounds.Empty() {
		return nil, ErrEmptyImage
	}

	if w, h, _ := scaledSize(bounds.Dx(), bounds.Dy()); w*h > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d scales to %dx%d", ErrImageTooLarge, bounds.Dx(), bounds.Dy(), w, h)
	}

	scaled, upscaled := upscale(src)

	width := scaled.Bounds().Dx()
	size := float64(max(width/FontScaleFactor, 1))

	face, err := opentype.NewFace(c.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create font face: %w", err)
	}

	return &Canvas{
		src:      scaled,
		face:     face,
		style:    c.style,
		upscaled: upscaled,
	}, nil
}

// Render lays out title for the prepared canvas and composes the final image.
func (c *Compositor) Render(src image.Image, title string, mode layout.Mode) (Result, error) {
	canvas, err := c.Prepare(src)
	if err != nil {
		return Result{}, err
	}
	defer canvas.Close()

	lines := layout.Lines(title, canvas.Width(), mode, canvas.Measure)
	if len(lines) == 0 {
		return Result{}, ErrEmptyTitle
	}

	return canvas.Compose(lines), nil
}

func (cv *Canvas) Width() int {
	return cv.src.Bounds().Dx()
}

func (cv *Canvas) Upscaled() bool {
	return cv.upscaled
}

func (cv *Canvas) Measure(s string) int {
	return font.MeasureString(cv.face, s).Ceil()
}

func (cv *Canvas) LineHeight() int {
	m := cv.face.Metrics()

	return m.Ascent.Ceil() + m.Descent.Ceil() + layout.Margin
}

func (cv *Canvas) Close() error {
	return cv.face.Close()
}

// Compose allocates a canvas with a band of lineHeight*len(lines)+margin pixels
// on top, draws lines into it and pastes the source image below.
func (cv *Canvas) Compose(lines []string) Result {
	bounds := cv.src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	lineHeight := cv.LineHeight()
	band := lineHeight*len(lines) + layout.Margin

	dst := image.NewRGBA(image.Rect(0, 0, width, height+band))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(cv.style.Background), image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(0, band, width, height+band), cv.src, bounds.Min, draw.Over)

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(cv.style.Foreground),
		Face: cv.face,
	}

	ascent := cv.face.Metrics().Ascent.Ceil()
	for i, line := range lines {
		drawer.Dot = fixed.P(layout.Margin, i*lineHeight+layout.Margin+ascent)
		drawer.DrawString(line)
	}

	return Result{
		Image:    dst,
		Upscaled: cv.upscaled,
		Lines:    lines,
	}
}

// upscale scales src uniformly so that both sides are at least MinSize.
func upscale(src image.Image) (image.Image, bool) {
	bounds := src.Bounds()

	newWidth, newHeight, upscaled := scaledSize(bounds.Dx(), bounds.Dy())
	if !upscaled {
		return src, false
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)

	return dst, true
}

func scaledSize(width, height int) (int, int, bool) {
	if width >= MinSize && height >= MinSize {
		return width, height, false
	}

	factor := math.Max(float64(MinSize)/float64(width), float64(MinSize)/float64(height))

	return int(math.Ceil(float64(width) * factor)), int(math.Ceil(float64(height) * factor)), true
}
