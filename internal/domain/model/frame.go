// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/combatpower/internal/domain/pose"
)

// FrameEvent is one landmark frame submitted to a measurement session.
type FrameEvent struct {
	SessionID string          // owning session
	Seq       int64           // client sequence number, unique per session
	Landmarks []pose.Landmark // detector output for the frame
	TS        time.Time       // time the server accepted the frame
}
