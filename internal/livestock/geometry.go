package livestock

import (
	"gonum.org/v1/gonum/floats"
)

// Stitcher lays the cameras out left to right on one horizontal axis and
// measures how far an animal moved between two observations.
//
// Cameras are assumed to be non-overlapping, FrameWidth pixels wide and
// vertically aligned. A jump between non-adjacent cameras is measured
// arithmetically like any other; nothing checks that the animal could have
// covered the distance in the elapsed time.
type Stitcher struct {
	FrameWidth float64
	PixelToCm  float64
}

// GlobalX maps a camera-local x onto the stitched axis.
func (s Stitcher) GlobalX(x float64, cameraIdx int) float64 {
	return x + float64(cameraIdx)*s.FrameWidth
}

// Displacement returns the distance in pixels between prev and cur. A nil
// prev (first sighting) yields 0.
func (s Stitcher) Displacement(cur Observation, prev *Observation) float64 {
	if prev == nil {
		return 0
	}
	if cur.CameraIdx == prev.CameraIdx {
		return floats.Distance(
			[]float64{cur.Position.X, cur.Position.Y},
			[]float64{prev.Position.X, prev.Position.Y},
			2,
		)
	}
	return floats.Distance(
		[]float64{s.GlobalX(cur.Position.X, cur.CameraIdx), cur.Position.Y},
		[]float64{s.GlobalX(prev.Position.X, prev.CameraIdx), prev.Position.Y},
		2,
	)
}

// ToCentimetres converts a pixel distance with the configured linear scale.
func (s Stitcher) ToCentimetres(px float64) float64 {
	return px * s.PixelToCm
}
