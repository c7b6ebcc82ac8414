package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/denesterov/geolog/internal/track"
)

const (
	// A map is only worth rendering for a track with enough substance.
	minPointsForMap = 10
	// Angular extent (degrees) below which a track is a smudge, not a map.
	minAngularSizeForMap = 0.003
	// Tracks tighter than this get the hi-detail canvas.
	angularSizeThreshold = 0.008

	loDetailCanvas = 640
	hiDetailCanvas = 1024
	canvasMargin   = 32
)

// ErrTrackTooSmall means the track fails the render thresholds; the session
// simply never gets a map artifact.
var ErrTrackTooSmall = errors.New("track too small to render")

var (
	backgroundColor = color.RGBA{R: 245, G: 245, B: 240, A: 255}
	trackColor      = color.RGBA{R: 30, G: 80, B: 200, A: 255}
)

// RenderPNG rasterizes a reconstructed track into a PNG: one polyline per
// segment on a plain background. Latitude is compressed by cos(midLat) so
// tracks keep their shape away from the equator.
func RenderPNG(tr track.Track) ([]byte, error) {
	total := 0
	for _, seg := range tr.Segments {
		total += len(seg)
	}
	if total < minPointsForMap {
		return nil, ErrTrackTooSmall
	}

	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLon, maxLon := math.Inf(1), math.Inf(-1)
	for _, seg := range tr.Segments {
		for _, p := range seg {
			minLat = math.Min(minLat, p.Lat)
			maxLat = math.Max(maxLat, p.Lat)
			minLon = math.Min(minLon, p.Lon)
			maxLon = math.Max(maxLon, p.Lon)
		}
	}

	midLat := (minLat + maxLat) / 2
	lonScale := math.Cos(midLat * math.Pi / 180)
	spanLat := maxLat - minLat
	spanLon := (maxLon - minLon) * lonScale
	angular := math.Max(spanLat, math.Max(spanLon, 1e-9))
	if angular < minAngularSizeForMap {
		return nil, ErrTrackTooSmall
	}

	canvas := loDetailCanvas
	if angular < angularSizeThreshold {
		canvas = hiDetailCanvas
	}

	scale := float64(canvas-2*canvasMargin) / angular
	width := int(spanLon*scale) + 2*canvasMargin
	height := int(spanLat*scale) + 2*canvasMargin

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, backgroundColor)
		}
	}

	project := func(lat, lon float64) (int, int) {
		x := canvasMargin + int((lon-minLon)*lonScale*scale)
		y := height - canvasMargin - int((lat-minLat)*scale)
		return x, y
	}

	for _, seg := range tr.Segments {
		for i := 1; i < len(seg); i++ {
			x0, y0 := project(seg[i-1].Lat, seg[i-1].Lon)
			x1, y1 := project(seg[i].Lat, seg[i].Lon)
			drawLine(img, x0, y0, x1, y1, trackColor)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// drawLine is plain Bresenham with a 2px stroke.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 >= x1 {
		sx = -1
	}
	sy := 1
	if y0 >= y1 {
		sy = -1
	}
	err := dx + dy

	for {
		setThick(img, x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func setThick(img *image.RGBA, x, y int, c color.RGBA) {
	bounds := img.Bounds()
	for _, d := range [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		px, py := x+d[0], y+d[1]
		if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
			img.SetRGBA(px, py, c)
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
