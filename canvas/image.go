package canvas

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnknownImage is returned when no registered decoder recognises a file.
var ErrUnknownImage = errors.New("cannot identify image file")

// LoadFrames decodes the image at path into flattened RGB frames. Still
// images return one frame; animated GIFs return one composited frame per
// animation step, in order.
func LoadFrames(path string) ([]image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, kind, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnknownImage)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%s: empty image (%dx%d)", filepath.Base(path), cfg.Width, cfg.Height)
	}

	if kind == "gif" {
		g, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if len(g.Image) > 1 {
			return compositeGIF(g), nil
		}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return []image.Image{Flatten(img)}, nil
}

// Flatten draws src over an opaque white background. Palette, gray+alpha
// and RGBA sources all come out as opaque RGBA, which encodes as plain RGB.
func Flatten(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

// compositeGIF replays the animation onto a logical screen, honouring frame
// disposal, and snapshots the screen after each frame.
func compositeGIF(g *gif.GIF) []image.Image {
	w, h := g.Config.Width, g.Config.Height
	if w <= 0 || h <= 0 {
		b := g.Image[0].Bounds()
		w, h = b.Max.X, b.Max.Y
	}
	screen := image.NewRGBA(image.Rect(0, 0, w, h))

	frames := make([]image.Image, 0, len(g.Image))
	for i, fr := range g.Image {
		var disposal byte
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}

		var saved *image.RGBA
		if disposal == gif.DisposalPrevious {
			saved = image.NewRGBA(screen.Bounds())
			draw.Draw(saved, saved.Bounds(), screen, image.Point{}, draw.Src)
		}

		draw.Draw(screen, fr.Bounds(), fr, fr.Bounds().Min, draw.Over)
		frames = append(frames, Flatten(screen))

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(screen, fr.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			screen = saved
		}
	}
	return frames
}
