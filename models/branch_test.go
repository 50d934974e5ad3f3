package models

import (
	"testing"
	"time"
)

func TestInNightWindow(t *testing.T) {
	cases := []struct {
		name   string
		minute int
		start  int
		end    int
		want   bool
	}{
		{"plain window inside", 10 * 60, 9 * 60, 17 * 60, true},
		{"plain window before", 8 * 60, 9 * 60, 17 * 60, false},
		{"plain window at start", 9 * 60, 9 * 60, 17 * 60, true},
		{"plain window at end", 17 * 60, 9 * 60, 17 * 60, false},
		{"wrapping window late evening", 23 * 60, 22 * 60, 6 * 60, true},
		{"wrapping window early morning", 3 * 60, 22 * 60, 6 * 60, true},
		{"wrapping window daytime", 12 * 60, 22 * 60, 6 * 60, false},
		{"wrapping window at end", 6 * 60, 22 * 60, 6 * 60, false},
		{"degenerate window", 12 * 60, 8 * 60, 8 * 60, false},
	}
	for _, tc := range cases {
		if got := inNightWindow(tc.minute, tc.start, tc.end); got != tc.want {
			t.Errorf("%s: inNightWindow(%d, %d, %d) = %v, want %v",
				tc.name, tc.minute, tc.start, tc.end, got, tc.want)
		}
	}
}

func TestResolveSupervisoryRoleAt(t *testing.T) {
	cfg := &BranchShiftConfig{
		BranchId:         1,
		Timezone:         "Asia/Yangon",
		NightStartMinute: 22 * 60,
		NightEndMinute:   6 * 60,
	}
	loc, err := time.LoadLocation("Asia/Yangon")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	role, err := resolveSupervisoryRoleAt(cfg, time.Date(2026, 3, 10, 23, 30, 0, 0, loc))
	if err != nil {
		t.Fatalf("resolveSupervisoryRoleAt: %v", err)
	}
	if role != RoleNightSupervisor {
		t.Fatalf("23:30 local must route to night_supervisor, got %s", role)
	}

	role, err = resolveSupervisoryRoleAt(cfg, time.Date(2026, 3, 10, 14, 0, 0, 0, loc))
	if err != nil {
		t.Fatalf("resolveSupervisoryRoleAt: %v", err)
	}
	if role != RoleBranchManager {
		t.Fatalf("14:00 local must route to branch_manager, got %s", role)
	}

	// The instant is converted to branch-local time before the window check:
	// 17:00 UTC is 23:30 in Yangon (+06:30).
	role, err = resolveSupervisoryRoleAt(cfg, time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("resolveSupervisoryRoleAt: %v", err)
	}
	if role != RoleNightSupervisor {
		t.Fatalf("17:00 UTC is inside the Yangon night window, got %s", role)
	}
}

func TestResolveSupervisoryRoleAt_BadTimezone(t *testing.T) {
	cfg := &BranchShiftConfig{BranchId: 1, Timezone: "Not/AZone"}
	if _, err := resolveSupervisoryRoleAt(cfg, time.Now()); err == nil {
		t.Fatalf("expected error for invalid timezone")
	}
}
