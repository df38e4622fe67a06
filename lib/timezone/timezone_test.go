package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMonthStart(t *testing.T) {
	cases := []struct {
		now    time.Time
		expect time.Time
	}{
		{
			now:    time.Date(2025, time.December, 16, 13, 0, 0, 0, Location),
			expect: time.Date(2025, time.December, 1, 0, 0, 0, 0, Location),
		},
		{
			now:    time.Date(2026, time.January, 1, 0, 0, 0, 0, Location),
			expect: time.Date(2026, time.January, 1, 0, 0, 0, 0, Location),
		},
		{
			// 03:00 UTC on the 1st is still the previous month in eastern time
			now:    time.Date(2025, time.March, 1, 3, 0, 0, 0, time.UTC),
			expect: time.Date(2025, time.February, 1, 0, 0, 0, 0, Location),
		},
	}

	for _, test := range cases {
		require.Equal(t, test.expect, MonthStart(test.now))
	}
}

func TestNowUsesHubLocation(t *testing.T) {
	require.Equal(t, Location, Now().Location())
}
