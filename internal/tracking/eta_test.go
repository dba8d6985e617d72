package tracking

import (
	"testing"
	"time"
)

func TestTimeUntilDelivery(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name        string
		estimate    time.Time
		wantMinutes int
		wantOverdue bool
		wantText    string
	}{
		{
			name:        "plenty of time remaining",
			estimate:    now.Add(25 * time.Minute),
			wantMinutes: 25,
			wantText:    "25 min remaining",
		},
		{
			name:        "arriving now",
			estimate:    now.Add(20 * time.Second),
			wantMinutes: 0,
			wantText:    "arriving now",
		},
		{
			name:        "overdue reports positive minutes",
			estimate:    now.Add(-7 * time.Minute),
			wantMinutes: 7,
			wantOverdue: true,
			wantText:    "overdue by 7 min",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eta := TimeUntilDelivery(tc.estimate, now)
			if eta.Minutes != tc.wantMinutes {
				t.Fatalf("minutes = %d, want %d", eta.Minutes, tc.wantMinutes)
			}
			if eta.IsOverdue != tc.wantOverdue {
				t.Fatalf("overdue = %v, want %v", eta.IsOverdue, tc.wantOverdue)
			}
			if eta.HumanText != tc.wantText {
				t.Fatalf("text = %q, want %q", eta.HumanText, tc.wantText)
			}
		})
	}
}
