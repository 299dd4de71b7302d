package align

import (
	"fmt"
	"math"
)

// Alignment strategy identifiers recorded with every offset.
const (
	MethodMetadata         = "metadata"
	MethodCrossCorrelation = "cross-correlation"
)

// Offset is the signed time delta between the two sources. A positive
// value means the right source started recording after the left, so
// the left stream carries that much leading footage the right stream
// never saw.
type Offset struct {
	Seconds    float64
	Method     string
	Confidence float64
	// Rationale records why this strategy was selected, for audit logs.
	Rationale string
}

// FrameSkips converts the offset into leading frame counts to discard
// from each stream before pairing. A positive offset skips left
// frames, a negative offset skips right frames; only one side ever
// skips.
func (o Offset) FrameSkips(fps float64) (leftSkip, rightSkip int) {
	if fps <= 0 {
		return 0, 0
	}
	frames := int(math.Round(math.Abs(o.Seconds) * fps))
	if o.Seconds >= 0 {
		return frames, 0
	}
	return 0, frames
}

func (o Offset) String() string {
	return fmt.Sprintf("%+.3fs via %s (confidence %.2f)", o.Seconds, o.Method, o.Confidence)
}
