// Package pose names the 33-point body landmark layout produced by the
// browser-side pose detector.
package pose

import "math"

// NumLandmarks is the number of points in one complete frame.
const NumLandmarks = 33

// Joint indices into a frame.
const (
	Nose           = 0
	LeftEyeInner   = 1
	LeftEye        = 2
	LeftEyeOuter   = 3
	RightEyeInner  = 4
	RightEye       = 5
	RightEyeOuter  = 6
	LeftEar        = 7
	RightEar       = 8
	MouthLeft      = 9
	MouthRight     = 10
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
)

// FaceLandmarks is the number of leading face points used for expression.
const FaceLandmarks = 5

// Landmark is one normalized image-space point; origin top-left, y grows downward.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z,omitempty"`
	Visibility float64 `json:"visibility,omitempty"`
}

// Complete reports whether lm carries the full layout.
func Complete(lm []Landmark) bool {
	return len(lm) >= NumLandmarks
}

// Distance is the 2D euclidean distance between a and b; depth is ignored.
func Distance(a, b Landmark) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Midpoint returns the 2D midpoint of a and b.
func Midpoint(a, b Landmark) Landmark {
	return Landmark{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// FootReference selects which lower-leg points stand in for the feet.
type FootReference string

// Supported foot references.
const (
	FootHeel  FootReference = "heel"
	FootAnkle FootReference = "ankle"
)

// Feet returns the left and right foot indices for ref; unknown values map to heels.
func (ref FootReference) Feet() (left, right int) {
	if ref == FootAnkle {
		return LeftAnkle, RightAnkle
	}
	return LeftHeel, RightHeel
}

// Valid reports whether ref is a known foot reference.
func (ref FootReference) Valid() bool {
	return ref == FootHeel || ref == FootAnkle
}
