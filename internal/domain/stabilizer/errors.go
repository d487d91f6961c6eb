package stabilizer

import "errors"

// ErrInvalidTuning is returned by Tuning.Validate.
var ErrInvalidTuning = errors.New("invalid stabilizer tuning")
