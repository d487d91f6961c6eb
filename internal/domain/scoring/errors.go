package scoring

import "errors"

// ErrInvalidConstants is returned by Constants.Validate.
var ErrInvalidConstants = errors.New("invalid score constants")
