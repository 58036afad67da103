package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"net/http"
	"os"

	_ "image/gif"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	"github.com/nashra-hq/nashra-dispatch/pkg/httpclient"
)

// Package imaging downloads article images, bounds them, stamps the site
// logo top-right and re-encodes to JPEG for the sinks.

const (
	logoMinWidthRatio = 0.10 // small images get a smaller stamp
	logoMaxWidthRatio = 0.20
	logoSmallWidthPx  = 600
	logoMarginPx      = 10
)

// Options tunes the composited output.
type Options struct {
	LogoPath    string
	MaxWidth    int
	MaxHeight   int
	JPEGQuality int
}

// Composer turns a remote image reference into branded JPEG bytes.
type Composer struct {
	client httpclient.Client
	logo   image.Image
	opts   Options
}

// NewComposer loads the logo once and keeps it for every composite. A missing
// logo file is not an error: composites are produced without the stamp, which
// keeps a misplaced deploy asset from blocking publishes.
func NewComposer(client httpclient.Client, opts Options) (*Composer, error) {
	if client == nil {
		return nil, fmt.Errorf("composer requires an http client")
	}
	if opts.MaxWidth <= 0 || opts.MaxHeight <= 0 {
		return nil, fmt.Errorf("composer requires positive image bounds")
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		return nil, fmt.Errorf("composer requires jpeg quality in 1-100")
	}

	c := &Composer{client: client, opts: opts}

	if opts.LogoPath != "" {
		if raw, err := os.ReadFile(opts.LogoPath); err == nil {
			logo, _, err := image.Decode(bytes.NewReader(raw))
			if err != nil {
				return nil, fmt.Errorf("decode logo %s: %w", opts.LogoPath, err)
			}
			c.logo = logo
		}
	}

	return c, nil
}

// ComposeFromURL downloads, downscales, stamps and re-encodes the image.
// Every failure here is an image-processing failure; the payload builder
// decides whether that degrades the payload or aborts the cycle.
func (c *Composer) ComposeFromURL(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.client.Get(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch image %s: %w", url, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("image %s returned status %d", url, resp.StatusCode())
	}

	src, _, err := image.Decode(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", url, err)
	}

	canvas := c.downscale(src)
	c.stampLogo(canvas)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, canvas, &jpeg.Options{Quality: c.opts.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return out.Bytes(), nil
}

// downscale fits the image inside MaxWidth x MaxHeight, never upscaling.
func (c *Composer) downscale(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	scale := 1.0
	if w > 0 && float64(c.opts.MaxWidth)/float64(w) < scale {
		scale = float64(c.opts.MaxWidth) / float64(w)
	}
	if h > 0 && float64(c.opts.MaxHeight)/float64(h) < scale {
		scale = float64(c.opts.MaxHeight) / float64(h)
	}

	outW, outH := w, h
	if scale < 1 {
		outW = max(1, int(float64(w)*scale))
		outH = max(1, int(float64(h)*scale))
	}

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

// stampLogo overlays the logo top-right with adaptive width.
func (c *Composer) stampLogo(canvas *image.RGBA) {
	if c.logo == nil {
		return
	}

	pw := canvas.Bounds().Dx()
	ratio := logoMaxWidthRatio
	if pw < logoSmallWidthPx {
		ratio = logoMinWidthRatio
	}

	lw := int(float64(pw) * ratio)
	if maxLW := pw - 2*logoMarginPx; lw > maxLW {
		lw = maxLW
	}
	if lw < 1 {
		lw = 1
	}

	logoBounds := c.logo.Bounds()
	lh := max(1, lw*logoBounds.Dy()/max(1, logoBounds.Dx()))

	scaled := image.NewRGBA(image.Rect(0, 0, lw, lh))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), c.logo, logoBounds, xdraw.Over, nil)

	offset := image.Pt(pw-lw-logoMarginPx, logoMarginPx)
	draw.Draw(canvas, scaled.Bounds().Add(offset), scaled, image.Point{}, draw.Over)
}
