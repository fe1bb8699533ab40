package booking

import (
	"crypto/rand"
	"time"
)

const referenceCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewReference builds a patient-facing booking code of the form
// MS-YYYYMMDD-XXXXXX, dated in UTC.
func NewReference(now time.Time) string {
	suffix := make([]byte, 6)
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		suffix[i] = referenceCharset[int(b)%len(referenceCharset)]
	}
	return "MS-" + now.UTC().Format("20060102") + "-" + string(suffix)
}
