package quota

import (
	"testing"

	"github.com/gottino/rmirror-cloud/domain"
)

func TestThresholdCrossed(t *testing.T) {
	cases := []struct {
		name             string
		oldUsed, newUsed int64
		limit            int64
		last             domain.Threshold
		wantCrossed      domain.Threshold
		wantChanged      bool
	}{
		{"no crossing", 10, 15, 100, domain.ThresholdNone, domain.ThresholdNone, false},
		{"crosses 90", 85, 92, 100, domain.ThresholdNone, domain.Threshold90, true},
		{"crosses 100", 95, 100, 100, domain.Threshold90, domain.Threshold100, true},
		{"already notified 90, stays under 100", 90, 95, 100, domain.Threshold90, domain.ThresholdNone, false},
		{"unlimited ledger never crosses", 1000, 2000, -1, domain.ThresholdNone, domain.ThresholdNone, false},
		{"jumps straight past 90 to 100 in one consume", 50, 100, 100, domain.ThresholdNone, domain.Threshold100, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, changed := thresholdCrossed(c.oldUsed, c.newUsed, c.limit, c.last)
			if changed != c.wantChanged || got != c.wantCrossed {
				t.Fatalf("thresholdCrossed(%d,%d,%d,%s) = (%s,%v), want (%s,%v)",
					c.oldUsed, c.newUsed, c.limit, c.last, got, changed, c.wantCrossed, c.wantChanged)
			}
		})
	}
}
