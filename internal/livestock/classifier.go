package livestock

// Classifier decides between Feeding and Moving from a single observation.
// It keeps no memory between calls, so an animal sitting right on a threshold
// can flap between states from one frame to the next.
type Classifier struct {
	// DisplacementThreshold is the pixel distance under which the animal is
	// considered stationary.
	DisplacementThreshold float64
	// FeedLineY is the image row of the trough line. Image y grows downward,
	// so y <= FeedLineY is the trough side.
	FeedLineY float64
	// TiltThreshold is the head angle in degrees under which the head is
	// considered lowered into the trough.
	TiltThreshold float64
}

// Classify returns Feeding when the animal is stationary, inside the trough
// zone and has its head lowered; otherwise Moving.
func (c Classifier) Classify(obs Observation, displacementPx float64) State {
	stationary := displacementPx < c.DisplacementThreshold
	atTrough := obs.Position.Y <= c.FeedLineY
	headDown := obs.Angle < c.TiltThreshold
	if stationary && atTrough && headDown {
		return Feeding
	}
	return Moving
}
