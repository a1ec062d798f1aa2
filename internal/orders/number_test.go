package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayPrefix(t *testing.T) {
	now := time.Date(2025, time.January, 15, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "GP20250115", DayPrefix(now))

	// single-digit month and day stay zero padded
	now = time.Date(2025, time.March, 7, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "GP20250307", DayPrefix(now))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "GP202501150001", FormatNumber("GP20250115", 1))
	assert.Equal(t, "GP202501150007", FormatNumber("GP20250115", 7))
	assert.Equal(t, "GP202501159999", FormatNumber("GP20250115", 9999))

	// past 9999 the field widens instead of wrapping or colliding
	assert.Equal(t, "GP2025011510000", FormatNumber("GP20250115", 10000))
	assert.Equal(t, "GP20250115123456", FormatNumber("GP20250115", 123456))
}

func TestSequenceOf(t *testing.T) {
	assert.Equal(t, 7, SequenceOf("GP20250115", "GP202501150007"))
	assert.Equal(t, 9999, SequenceOf("GP20250115", "GP202501159999"))
	assert.Equal(t, 10000, SequenceOf("GP20250115", "GP2025011510000"))

	// wrong day, garbage suffix, or foreign number all read as zero
	assert.Equal(t, 0, SequenceOf("GP20250115", "GP202501160001"))
	assert.Equal(t, 0, SequenceOf("GP20250115", "GP20250115abcd"))
	assert.Equal(t, 0, SequenceOf("GP20250115", "ORD-1234"))
}

func TestSequenceRoundTrip(t *testing.T) {
	prefix := DayPrefix(time.Date(2025, time.December, 31, 23, 59, 0, 0, time.UTC))
	for _, seq := range []int{1, 42, 9999, 10000, 100001} {
		assert.Equal(t, seq, SequenceOf(prefix, FormatNumber(prefix, seq)))
	}
}
