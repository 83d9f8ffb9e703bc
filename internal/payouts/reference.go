package payouts

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxReferenceLength is the gateway's limit on reference ids.
	MaxReferenceLength = 40
	// MaxNarrationLength is the gateway's limit on narration text.
	MaxNarrationLength = 30

	referencePrefix  = "PO"
	coachIDChars     = 24
	ellipsis         = "..."
	defaultNarration = "Coach payout"
)

// ReferenceID builds the per-attempt reference: PO<unix millis>_<coach id prefix>.
func ReferenceID(now time.Time, coachID uuid.UUID) string {
	compact := strings.ReplaceAll(coachID.String(), "-", "")
	if len(compact) > coachIDChars {
		compact = compact[:coachIDChars]
	}
	ref := referencePrefix + strconv.FormatInt(now.UnixMilli(), 10) + "_" + compact
	if len(ref) > MaxReferenceLength {
		ref = ref[:MaxReferenceLength]
	}
	return ref
}

// Narration trims text to the gateway limit, ending with "..." when cut.
func Narration(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return defaultNarration
	}
	runes := []rune(text)
	if len(runes) <= MaxNarrationLength {
		return text
	}
	return string(runes[:MaxNarrationLength-len(ellipsis)]) + ellipsis
}
