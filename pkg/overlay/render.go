package overlay

import (
	"fmt"
	"image"

	"github.com/bmharper/cimg/v2"
	"github.com/fogleman/gg"
)

// Quality of snapshot JPEGs
const JPEGQuality = 85

// Frame is everything that is drawn on the screen for one cycle
type Frame struct {
	Camera *cimg.Image // May be nil
	Lines  []string
	Banner string // Empty for no banner
}

// Renderer draws frames onto a screen-sized canvas
type Renderer struct {
	layout Layout
	dc     *gg.Context
}

func NewRenderer(layout Layout) (*Renderer, error) {
	if layout.Width <= 0 || layout.Height <= 0 {
		return nil, fmt.Errorf("Invalid screen size %v x %v", layout.Width, layout.Height)
	}
	if layout.Rotation < 0 || layout.Rotation > 3 {
		return nil, fmt.Errorf("Invalid screen rotation %v", layout.Rotation)
	}
	w, h := layout.ScreenSize()
	return &Renderer{
		layout: layout,
		dc:     gg.NewContext(w, h),
	}, nil
}

func (r *Renderer) Layout() Layout {
	return r.layout
}

// Render draws the frame, and returns a copy of the screen
func (r *Renderer) Render(f *Frame) *cimg.Image {
	dc := r.dc
	dc.SetRGB(0, 0, 0)
	dc.Clear()

	imgW, imgH := 0, 0
	if f.Camera != nil && f.Camera.Width > 0 && f.Camera.Height > 0 {
		cam := f.Camera
		imgW, imgH = r.layout.FitImage(cam.Width, cam.Height)
		if imgW != cam.Width || imgH != cam.Height {
			cam = cimg.ResizeNew(cam, imgW, imgH, nil)
		}
		x, y := r.layout.ImageOrigin(imgW, imgH)
		dc.DrawImage(toRGBA(cam), x, y)
	}

	dc.SetRGB(1, 1, 1)
	for i, line := range f.Lines {
		tw, _ := dc.MeasureString(line)
		x, y := r.layout.TextOrigin(i, tw, imgH)
		dc.DrawStringAnchored(line, x, y, 0, 1)
	}

	if f.Banner != "" {
		dc.SetRGB(1, 0.85, 0.2)
		if r.layout.Portrait() {
			tw, _ := dc.MeasureString(f.Banner)
			x, y := r.layout.BannerOrigin(0, tw, imgW)
			dc.DrawStringAnchored(f.Banner, x, y, 0, 1)
		} else {
			for i, word := range BannerWords(f.Banner) {
				x, y := r.layout.BannerOrigin(i, 0, imgW)
				dc.DrawStringAnchored(word, x, y, 0, 1)
			}
		}
	}

	return fromImage(dc.Image())
}

// EncodeJPEG compresses a rendered screen
func EncodeJPEG(img *cimg.Image) ([]byte, error) {
	return cimg.Compress(img, cimg.MakeCompressParams(cimg.Sampling420, JPEGQuality, 0))
}

// Convert a 1, 3, or 4 channel cimg image into an RGBA image
func toRGBA(img *cimg.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	nchan := img.NChan()
	for y := 0; y < img.Height; y++ {
		src := img.Pixels[y*img.Stride:]
		out := dst.Pix[y*dst.Stride:]
		for x := 0; x < img.Width; x++ {
			switch nchan {
			case 1:
				out[x*4+0] = src[x]
				out[x*4+1] = src[x]
				out[x*4+2] = src[x]
			default:
				out[x*4+0] = src[x*nchan+0]
				out[x*4+1] = src[x*nchan+1]
				out[x*4+2] = src[x*nchan+2]
			}
			out[x*4+3] = 255
		}
	}
	return dst
}

// Convert the canvas back into an RGB cimg image
func fromImage(src image.Image) *cimg.Image {
	b := src.Bounds()
	dst := cimg.NewImage(b.Dx(), b.Dy(), cimg.PixelFormatRGB)
	rgba, isRGBA := src.(*image.RGBA)
	for y := 0; y < b.Dy(); y++ {
		out := dst.Pixels[y*dst.Stride:]
		for x := 0; x < b.Dx(); x++ {
			if isRGBA {
				p := rgba.Pix[y*rgba.Stride+x*4:]
				out[x*3+0] = p[0]
				out[x*3+1] = p[1]
				out[x*3+2] = p[2]
			} else {
				r, g, bl, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
				out[x*3+0] = uint8(r >> 8)
				out[x*3+1] = uint8(g >> 8)
				out[x*3+2] = uint8(bl >> 8)
			}
		}
	}
	return dst
}
