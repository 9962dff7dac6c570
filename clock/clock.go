// Package clock provides the single monotonic millisecond time source
// used by the rest of the pipeline.
package clock

import "time"

// System yields the current time in milliseconds. The super-loop reads
// it once per tick and threads the value through keygroup and vkeyboard
// as a plain int64, so tests can drive both with literal timestamps.
func System() int64 {
	return time.Now().UnixMilli()
}
