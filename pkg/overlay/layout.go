package overlay

// Default screen, in its native (landscape) orientation
const (
	DefaultScreenWidth  = 320
	DefaultScreenHeight = 240
)

// Vertical distance between two lines of text
const LineSpacing = 24

// Gap between the bottom of the image and the first line of text, in portrait mode
const imageTextGap = 10

// Margin on the left of text in landscape mode
const landscapeTextX = 4

// Layout places the camera image and the text on the screen.
// Rotation is in quarter turns. Rotations 1 and 3 are portrait:
// the image sits at the top, centered, with centered text under it.
// Rotations 0 and 2 are landscape: the image sits at the bottom left,
// with the text starting at the top left.
type Layout struct {
	Width    int // Native screen width
	Height   int // Native screen height
	Rotation int // 0..3
}

func DefaultLayout() Layout {
	return Layout{
		Width:    DefaultScreenWidth,
		Height:   DefaultScreenHeight,
		Rotation: 0,
	}
}

func (l Layout) Portrait() bool {
	return l.Rotation == 1 || l.Rotation == 3
}

// Size of the screen after rotation
func (l Layout) ScreenSize() (int, int) {
	if l.Portrait() {
		return l.Height, l.Width
	}
	return l.Width, l.Height
}

// MaxImageSize is the largest image that we'll draw.
// In portrait mode, we leave space for two lines of text under the image.
func (l Layout) MaxImageSize() (int, int) {
	w, h := l.ScreenSize()
	if l.Portrait() {
		h -= imageTextGap + 2*LineSpacing
	}
	return w, max(h, 1)
}

// FitImage scales (srcW, srcH) down to fit inside MaxImageSize, preserving aspect ratio.
// Images that already fit are not scaled up.
func (l Layout) FitImage(srcW, srcH int) (int, int) {
	maxW, maxH := l.MaxImageSize()
	if srcW <= maxW && srcH <= maxH {
		return srcW, srcH
	}
	if srcW*maxH > srcH*maxW {
		return maxW, max(1, srcH*maxW/srcW)
	}
	return max(1, srcW*maxH/srcH), maxH
}

// ImageOrigin is the top-left corner of an image of the given size
func (l Layout) ImageOrigin(imgW, imgH int) (int, int) {
	w, h := l.ScreenSize()
	if l.Portrait() {
		return (w - imgW) / 2, 0
	}
	return 0, h - imgH
}

// TextOrigin is the top-left corner of a line of text.
// line is zero-based, textW is the rendered width of the text, and imgH is the height
// of the image that was drawn.
func (l Layout) TextOrigin(line int, textW float64, imgH int) (float64, float64) {
	w, _ := l.ScreenSize()
	if l.Portrait() {
		x := (float64(w) - textW) / 2
		y := float64(imgH + imageTextGap + line*LineSpacing)
		return max(x, 0), y
	}
	return landscapeTextX, float64(line * LineSpacing)
}

// BannerOrigin is the top-left corner of the banner.
// In portrait mode the banner is one centered line at the bottom of the screen.
// In landscape mode the banner words are stacked to the right of the image,
// and line selects the word.
func (l Layout) BannerOrigin(line int, textW float64, imgW int) (float64, float64) {
	w, h := l.ScreenSize()
	if l.Portrait() {
		return max((float64(w)-textW)/2, 0), float64(h - LineSpacing)
	}
	return float64(imgW), float64(4 + line*LineSpacing)
}
