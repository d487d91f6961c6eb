package dedupe

import "strconv"

// FrameKey identifies one frame of a measurement session.
func FrameKey(sessionID string, seq int64) string {
	return "frame:" + sessionID + ":" + strconv.FormatInt(seq, 10)
}

// SaveKey identifies a client-supplied save request id.
func SaveKey(requestID string) string {
	return "save:" + requestID
}
