package detector

import "image"

// Size is the pixel size of the frame a detection was made on.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// SizeOf returns the pixel size of img.
func SizeOf(img image.Image) Size {
	b := img.Bounds()
	return Size{Width: b.Dx(), Height: b.Dy()}
}

// Rect is an axis-aligned rectangle in corner form. Decoded boxes are normalized
// to [0,1] relative to the image; Pixels returns the denormalized variant.
type Rect struct {
	Left   float32 `json:"left" yaml:"left"`
	Top    float32 `json:"top" yaml:"top"`
	Right  float32 `json:"right" yaml:"right"`
	Bottom float32 `json:"bottom" yaml:"bottom"`
}

// Width returns Right - Left.
func (r Rect) Width() float32 { return r.Right - r.Left }

// Height returns Bottom - Top.
func (r Rect) Height() float32 { return r.Bottom - r.Top }

// CenterX returns the horizontal center.
func (r Rect) CenterX() float32 { return (r.Left + r.Right) / 2 }

// CenterY returns the vertical center.
func (r Rect) CenterY() float32 { return (r.Top + r.Bottom) / 2 }

// Area returns the rectangle area, zero for degenerate rectangles.
func (r Rect) Area() float32 {
	w, h := r.Width(), r.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Scale multiplies the horizontal edges by sx and the vertical edges by sy.
func (r Rect) Scale(sx, sy float32) Rect {
	return Rect{Left: r.Left * sx, Top: r.Top * sy, Right: r.Right * sx, Bottom: r.Bottom * sy}
}

// DetectionBox is one surviving detection of a frame.
type DetectionBox struct {
	Rect       Rect    // normalized corner form
	Label      int     // digit 0-9
	Confidence float32 // softmax probability of the winning class
	ImageSize  Size    // frame the box was detected on
}

// Pixels returns the box rectangle in pixel coordinates of ImageSize.
func (d DetectionBox) Pixels() Rect {
	return d.Rect.Scale(float32(d.ImageSize.Width), float32(d.ImageSize.Height))
}

// DetectedOcrBox is the export form of a DetectionBox: pixel rectangle,
// confidence and label, used for overlays and API responses.
type DetectedOcrBox struct {
	Left        float32 `json:"left" yaml:"left"`
	Top         float32 `json:"top" yaml:"top"`
	Right       float32 `json:"right" yaml:"right"`
	Bottom      float32 `json:"bottom" yaml:"bottom"`
	Confidence  float32 `json:"confidence" yaml:"confidence"`
	ImageWidth  int     `json:"image_width" yaml:"image_width"`
	ImageHeight int     `json:"image_height" yaml:"image_height"`
	Label       int     `json:"label" yaml:"label"`
}

// NewDetectedOcrBox converts a detection into its export form.
func NewDetectedOcrBox(d DetectionBox) DetectedOcrBox {
	p := d.Pixels()
	return DetectedOcrBox{
		Left:        p.Left,
		Top:         p.Top,
		Right:       p.Right,
		Bottom:      p.Bottom,
		Confidence:  d.Confidence,
		ImageWidth:  d.ImageSize.Width,
		ImageHeight: d.ImageSize.Height,
		Label:       d.Label,
	}
}

// Rect returns the pixel rectangle.
func (b DetectedOcrBox) Rect() Rect {
	return Rect{Left: b.Left, Top: b.Top, Right: b.Right, Bottom: b.Bottom}
}

// CenterY returns the vertical center in pixels.
func (b DetectedOcrBox) CenterY() float32 { return (b.Top + b.Bottom) / 2 }

// Width returns the pixel width.
func (b DetectedOcrBox) Width() float32 { return b.Right - b.Left }

// Height returns the pixel height.
func (b DetectedOcrBox) Height() float32 { return b.Bottom - b.Top }

// ImageRect returns the box as an integer image.Rectangle for drawing.
func (b DetectedOcrBox) ImageRect() image.Rectangle {
	return image.Rect(int(b.Left), int(b.Top), int(b.Right+0.5), int(b.Bottom+0.5))
}
