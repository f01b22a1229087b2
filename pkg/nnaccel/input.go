package nnaccel

import (
	"fmt"
	"unsafe"

	"github.com/bmharper/cimg/v2"
	"golang.org/x/sys/unix"
)

// System page size. Read at startup.
var pageSize uintptr

// Allocate 'size' bytes of memory, aligned to a page boundary.
// Accelerators DMA their input directly from this memory.
func PageAlignedAlloc(size int) []byte {
	raw := make([]byte, size+int(pageSize))
	offset := pageSize - (uintptr(unsafe.Pointer(&raw[0])) % pageSize)
	return raw[offset : int(offset)+size]
}

// Returns the system page size
func PageSize() int {
	return int(pageSize)
}

func init() {
	pageSize = uintptr(unix.Getpagesize())
}

// InputBuffer is the RGB image that is fed into the model.
// It is allocated once, and reused for every frame.
type InputBuffer struct {
	Width  int
	Height int
	Stride int
	Pixels []byte  // Page aligned
	Scale  float32 // Scale from the last source image to the model input
}

func NewInputBuffer(width, height int) (*InputBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("Invalid NN input size %v x %v", width, height)
	}
	return &InputBuffer{
		Width:  width,
		Height: height,
		Stride: width * 3,
		Pixels: PageAlignedAlloc(width * height * 3),
		Scale:  1,
	}, nil
}

// Image wraps the buffer's memory
func (b *InputBuffer) Image() *cimg.Image {
	return cimg.WrapImageStrided(b.Width, b.Height, cimg.PixelFormatRGB, b.Pixels, b.Stride)
}

// Load resizes rgb into the buffer, preserving its aspect ratio.
// The right or bottom edge is padded with black when the aspect ratios differ.
func (b *InputBuffer) Load(rgb *cimg.Image) error {
	if rgb.NChan() != 3 {
		return fmt.Errorf("NN input must be RGB, but image has %v channels", rgb.NChan())
	}
	if rgb.Width == b.Width && rgb.Height == b.Height {
		for y := 0; y < b.Height; y++ {
			copy(b.Pixels[y*b.Stride:y*b.Stride+b.Width*3], rgb.Pixels[y*rgb.Stride:])
		}
		b.Scale = 1
		return nil
	}
	scale := min(float32(b.Width)/float32(rgb.Width), float32(b.Height)/float32(rgb.Height))
	scaledWidth := min(b.Width, int(float32(rgb.Width)*scale+0.5))
	scaledHeight := min(b.Height, int(float32(rgb.Height)*scale+0.5))
	if scale == 1 {
		b.Image().CopyImageRect(rgb, 0, 0, rgb.Width, rgb.Height, 0, 0)
	} else {
		resizeParams := cimg.ResizeParams{CheapSRGBFilter: true}
		if scale < 1 {
			resizeParams.Filter = cimg.ResizeFilterBox
		} else {
			resizeParams.Filter = cimg.ResizeFilterTriangle
		}
		dst := cimg.WrapImageStrided(scaledWidth, scaledHeight, cimg.PixelFormatRGB, b.Pixels, b.Stride)
		cimg.Resize(rgb, dst, &resizeParams)
	}
	// Fill the right and bottom edges with black
	for y := 0; y < scaledHeight; y++ {
		clear(b.Pixels[y*b.Stride+3*scaledWidth : y*b.Stride+3*b.Width])
	}
	for y := scaledHeight; y < b.Height; y++ {
		clear(b.Pixels[y*b.Stride : y*b.Stride+3*b.Width])
	}
	b.Scale = scale
	return nil
}
