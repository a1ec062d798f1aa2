package orders

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Order numbers are human-readable and date-scoped:
// "GP" + YYYYMMDD + zero-padded sequence, e.g. GP202501150007.
// The sequence normally occupies 4 digits; past 9999 it widens rather than
// wrapping, so a busy day keeps producing unique numbers.

const numberPrefix = "GP"

// DayPrefix returns the prefix shared by every order number issued on the
// given day, e.g. "GP20250115".
func DayPrefix(now time.Time) string {
	return fmt.Sprintf("%s%04d%02d%02d", numberPrefix, now.Year(), int(now.Month()), now.Day())
}

// FormatNumber builds the order number for a day prefix and sequence.
func FormatNumber(dayPrefix string, seq int) string {
	return fmt.Sprintf("%s%04d", dayPrefix, seq)
}

// SequenceOf parses the sequence out of an order number issued under the
// given day prefix. Returns 0 when the number does not belong to that day.
func SequenceOf(dayPrefix, orderNumber string) int {
	if !strings.HasPrefix(orderNumber, dayPrefix) {
		return 0
	}
	n, err := strconv.Atoi(orderNumber[len(dayPrefix):])
	if err != nil || n < 0 {
		return 0
	}
	return n
}
