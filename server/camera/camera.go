// Package camera supplies the frames that are classified and drawn on the screen
package camera

import (
	"fmt"
	"os"
	"sync"

	"github.com/bmharper/cimg/v2"
)

// Camera produces RGB frames
type Camera interface {
	// Snapshot returns the latest frame. The image must not be modified by the caller.
	Snapshot() (*cimg.Image, error)
	Close()
}

// StillCamera returns the same image every time.
// It is used for bench testing, and when no camera is attached.
type StillCamera struct {
	img *cimg.Image
}

// Create a StillCamera from a JPEG file
func NewStillCameraFromFile(filename string) (*StillCamera, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return NewStillCameraFromJPEG(b)
}

func NewStillCameraFromJPEG(jpeg []byte) (*StillCamera, error) {
	img, err := cimg.Decompress(jpeg)
	if err != nil {
		return nil, fmt.Errorf("Error decoding camera image: %w", err)
	}
	rgb, err := ToRGB(img)
	if err != nil {
		return nil, err
	}
	return &StillCamera{img: rgb}, nil
}

func NewStillCamera(img *cimg.Image) (*StillCamera, error) {
	rgb, err := ToRGB(img)
	if err != nil {
		return nil, err
	}
	return &StillCamera{img: rgb}, nil
}

func (c *StillCamera) Snapshot() (*cimg.Image, error) {
	return c.img, nil
}

func (c *StillCamera) Close() {
}

// PatternCamera produces a moving color gradient.
// Frame N is always the same image, so tests are repeatable.
type PatternCamera struct {
	Width  int
	Height int

	lock  sync.Mutex
	frame int
	img   *cimg.Image
}

func NewPatternCamera(width, height int) (*PatternCamera, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("Invalid camera size %v x %v", width, height)
	}
	return &PatternCamera{
		Width:  width,
		Height: height,
	}, nil
}

func (c *PatternCamera) Snapshot() (*cimg.Image, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	// A fresh image each time, because the previous one may still be in use
	c.img = RenderPattern(c.Width, c.Height, c.frame)
	c.frame++
	return c.img, nil
}

// Number of frames produced so far
func (c *PatternCamera) Frames() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.frame
}

func (c *PatternCamera) Close() {
}

// RenderPattern draws frame number 'frame' of the test pattern
func RenderPattern(width, height, frame int) *cimg.Image {
	img := cimg.NewImage(width, height, cimg.PixelFormatRGB)
	for y := 0; y < height; y++ {
		line := img.Pixels[y*img.Stride:]
		for x := 0; x < width; x++ {
			line[x*3+0] = uint8((x + frame) * 255 / width)
			line[x*3+1] = uint8(y * 255 / height)
			line[x*3+2] = uint8(frame * 8)
		}
	}
	return img
}

// ToRGB returns img if it is already RGB, otherwise a converted copy.
// 1 channel images are treated as gray, and 4 channel images lose their alpha.
func ToRGB(img *cimg.Image) (*cimg.Image, error) {
	nchan := img.NChan()
	if nchan == 3 {
		return img, nil
	}
	if nchan != 1 && nchan != 4 {
		return nil, fmt.Errorf("Unsupported camera image with %v channels", nchan)
	}
	rgb := cimg.NewImage(img.Width, img.Height, cimg.PixelFormatRGB)
	for y := 0; y < img.Height; y++ {
		src := img.Pixels[y*img.Stride:]
		dst := rgb.Pixels[y*rgb.Stride:]
		for x := 0; x < img.Width; x++ {
			if nchan == 1 {
				dst[x*3+0] = src[x]
				dst[x*3+1] = src[x]
				dst[x*3+2] = src[x]
			} else {
				dst[x*3+0] = src[x*4+0]
				dst[x*3+1] = src[x*4+1]
				dst[x*3+2] = src[x*4+2]
			}
		}
	}
	return rgb, nil
}
