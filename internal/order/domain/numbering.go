package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const numberLayout = "20060102-150405"

// NumberGenerator yields human-readable order numbers. Uniqueness is enforced
// by the order store; a collision is answered by asking for another number.
type NumberGenerator interface {
	Next(now time.Time) string
}

// TimestampNumbers produces ORD-yyyyMMdd-HHmmss-xxxxxxxx with a random hex
// suffix taken from a v4 UUID.
type TimestampNumbers struct{}

func (TimestampNumbers) Next(now time.Time) string {
	return FormatNumber(now, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func FormatNumber(now time.Time, suffix string) string {
	return "ORD-" + now.Format(numberLayout) + "-" + suffix
}
