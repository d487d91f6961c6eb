package replay

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/okian/combatpower/internal/domain/pose"
)

const (
	filePermission      = 0o600
	directoryPermission = 0o750
	reachGrowth         = 0.08 // how far each wrist drifts outward over a stream
)

// Standing returns a reference frame of a player standing upright with arms
// spread, feet on the heels at y=0.9.
func Standing() []pose.Landmark {
	lm := make([]pose.Landmark, pose.NumLandmarks)
	for i := range lm {
		lm[i] = pose.Landmark{X: 0.5, Y: 0.5, Visibility: 1}
	}
	for i := pose.Nose; i < pose.FaceLandmarks; i++ {
		lm[i] = pose.Landmark{X: 0.5, Y: 0.1, Visibility: 1}
	}
	lm[pose.LeftWrist] = pose.Landmark{X: 0.1, Y: 0.5, Visibility: 1}
	lm[pose.RightWrist] = pose.Landmark{X: 0.9, Y: 0.5, Visibility: 1}
	lm[pose.LeftShoulder] = pose.Landmark{X: 0.4, Y: 0.3, Visibility: 1}
	lm[pose.RightShoulder] = pose.Landmark{X: 0.6, Y: 0.3, Visibility: 1}
	lm[pose.LeftHip] = pose.Landmark{X: 0.45, Y: 0.5, Visibility: 1}
	lm[pose.RightHip] = pose.Landmark{X: 0.55, Y: 0.5, Visibility: 1}
	lm[pose.LeftAnkle] = pose.Landmark{X: 0.45, Y: 0.85, Visibility: 1}
	lm[pose.RightAnkle] = pose.Landmark{X: 0.55, Y: 0.85, Visibility: 1}
	lm[pose.LeftHeel] = pose.Landmark{X: 0.45, Y: 0.9, Visibility: 1}
	lm[pose.RightHeel] = pose.Landmark{X: 0.55, Y: 0.9, Visibility: 1}
	return lm
}

// Synthetic generates n frames around Standing: every coordinate gets
// uniform noise of ±jitter, the wrists drift outward over the stream, and
// every spikes-th frame is a detector glitch with the feet at head height.
// The same seed always yields the same stream.
func Synthetic(n int, seed uint64, jitter float64, spikes int) [][]pose.Landmark {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // reproducible test data
	frames := make([][]pose.Landmark, n)
	for i := range frames {
		lm := Standing()
		progress := 0.0
		if n > 1 {
			progress = float64(i) / float64(n-1)
		}
		lm[pose.LeftWrist].X -= reachGrowth * progress
		lm[pose.RightWrist].X += reachGrowth * progress
		for j := range lm {
			lm[j].X += (rng.Float64()*2 - 1) * jitter
			lm[j].Y += (rng.Float64()*2 - 1) * jitter
		}
		if spikes > 0 && i > 0 && i%spikes == 0 {
			lm[pose.LeftHeel].Y, lm[pose.RightHeel].Y = lm[pose.Nose].Y, lm[pose.Nose].Y
			lm[pose.LeftAnkle].Y, lm[pose.RightAnkle].Y = lm[pose.Nose].Y, lm[pose.Nose].Y
		}
		frames[i] = lm
	}
	return frames
}

// LoadFrames reads a JSON array of frames.
func LoadFrames(path string) ([][]pose.Landmark, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, fmt.Errorf("load frames: %w", err)
	}
	var frames [][]pose.Landmark
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, fmt.Errorf("load frames %s: %w", path, err)
	}
	return frames, nil
}

// SaveFrames writes frames as a JSON array, one frame per line.
func SaveFrames(path string, frames [][]pose.Landmark) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("save frames: %w", err)
		}
	}
	buf := []byte("[\n")
	for i, f := range frames {
		line, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("save frames: frame %d: %w", i, err)
		}
		buf = append(buf, line...)
		if i < len(frames)-1 {
			buf = append(buf, ',')
		}
		buf = append(buf, '\n')
	}
	buf = append(buf, "]\n"...)
	if err := os.WriteFile(path, buf, filePermission); err != nil {
		return fmt.Errorf("save frames: %w", err)
	}
	return nil
}
