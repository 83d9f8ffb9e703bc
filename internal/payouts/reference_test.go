package payouts

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestReferenceIDFitsGatewayLimit(t *testing.T) {
	coachID := uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")
	now := time.UnixMilli(1760000000123)

	ref := ReferenceID(now, coachID)
	assert.Equal(t, "PO1760000000123_0f8fad5bd9cb469fa1657086", ref)
	assert.LessOrEqual(t, len(ref), MaxReferenceLength)
}

func TestNarration(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty defaults", in: "   ", want: "Coach payout"},
		{name: "short kept", in: "March payout", want: "March payout"},
		{name: "whitespace collapsed", in: " March \n  payout ", want: "March payout"},
		{name: "exact limit kept", in: strings.Repeat("a", 30), want: strings.Repeat("a", 30)},
		{name: "long truncated", in: strings.Repeat("b", 31), want: strings.Repeat("b", 27) + "..."},
		{name: "multibyte counted by rune", in: strings.Repeat("é", 40), want: strings.Repeat("é", 27) + "..."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Narration(tc.in)
			assert.Equal(t, tc.want, got)
			assert.LessOrEqual(t, len([]rune(got)), MaxNarrationLength)
		})
	}
}
