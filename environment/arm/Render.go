package arm

import (
	"image/color"

	"github.com/fogleman/gg"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	ViewportW int     = 400
	ViewportH int     = 400
	margin    float64 = 1.2
)

var (
	backgroundColour = color.RGBA{R: 30, G: 30, B: 30, A: 255}
	linkColour       = color.RGBA{R: 128, G: 102, B: 230, A: 255}
	jointColour      = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	targetColour     = color.RGBA{R: 255, G: 166, B: 0, A: 255}
	wallColour       = color.RGBA{R: 200, G: 60, B: 60, A: 255}
	objectColour     = color.RGBA{R: 77, G: 180, B: 128, A: 255}
)

// Canvas draws planar arm scenes in world coordinates, where the arm
// base sits at the centre of the image.
type Canvas struct {
	dc    *gg.Context
	scale float64
}

// NewCanvas returns a Canvas large enough to show an arm with the
// given reach.
func NewCanvas(reach float64) *Canvas {
	dc := gg.NewContext(ViewportW, ViewportH)
	dc.SetColor(backgroundColour)
	dc.Clear()

	scale := float64(ViewportW) / (2 * margin * reach)
	return &Canvas{dc: dc, scale: scale}
}

// pixel converts world coordinates to pixel coordinates
func (c *Canvas) pixel(p r2.Vec) (float64, float64) {
	return float64(ViewportW)/2 + p.X*c.scale,
		float64(ViewportH)/2 - p.Y*c.scale
}

// DrawArm draws the links and joints of an arm given its joint
// positions
func (c *Canvas) DrawArm(positions []r2.Vec) {
	c.dc.SetColor(linkColour)
	c.dc.SetLineWidth(6.0)
	for i := 1; i < len(positions); i++ {
		x1, y1 := c.pixel(positions[i-1])
		x2, y2 := c.pixel(positions[i])
		c.dc.DrawLine(x1, y1, x2, y2)
	}
	c.dc.Stroke()

	c.dc.SetColor(jointColour)
	for _, p := range positions {
		x, y := c.pixel(p)
		c.dc.DrawCircle(x, y, 4)
	}
	c.dc.Fill()
}

// DrawTarget draws a target marker of the given world radius
func (c *Canvas) DrawTarget(p r2.Vec, radius float64) {
	x, y := c.pixel(p)
	c.dc.SetColor(targetColour)
	c.dc.SetLineWidth(2.0)
	c.dc.DrawCircle(x, y, radius*c.scale)
	c.dc.Stroke()
}

// DrawObject draws a filled circular object of the given world radius
func (c *Canvas) DrawObject(p r2.Vec, radius float64) {
	x, y := c.pixel(p)
	c.dc.SetColor(objectColour)
	c.dc.DrawCircle(x, y, radius*c.scale)
	c.dc.Fill()
}

// DrawWall draws a wall obstacle
func (c *Canvas) DrawWall(w Wall) {
	x1, y1 := c.pixel(w.From)
	x2, y2 := c.pixel(w.To)
	c.dc.SetColor(wallColour)
	c.dc.SetLineWidth(w.Thickness * c.scale)
	c.dc.DrawLine(x1, y1, x2, y2)
	c.dc.Stroke()
}

// SavePNG saves the canvas to a PNG file
func (c *Canvas) SavePNG(filename string) error {
	return c.dc.SavePNG(filename)
}
