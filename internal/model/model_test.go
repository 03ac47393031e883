package model

import (
	"testing"
	"time"
)

func TestUserLevel(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		hiredAt time.Time
		want    int64
	}{
		{
			name:    "hired today",
			hiredAt: now,
			want:    0,
		},
		{
			name:    "29 days is still level 0",
			hiredAt: now.AddDate(0, 0, -29),
			want:    0,
		},
		{
			name:    "30 days is level 1",
			hiredAt: now.AddDate(0, 0, -30),
			want:    1,
		},
		{
			name:    "one year",
			hiredAt: now.AddDate(0, 0, -365),
			want:    12,
		},
		{
			name:    "hired in the future",
			hiredAt: now.AddDate(0, 0, 10),
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{HiredAt: tt.hiredAt}
			if got := u.Level(now); got != tt.want {
				t.Fatalf("Level() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRequestStatusTerminal(t *testing.T) {
	terminal := map[RequestStatus]bool{
		StatusPending:   false,
		StatusApproved:  true,
		StatusDeclined:  true,
		StatusProcessed: false,
		StatusCompleted: false,
	}

	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Fatalf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestRequestStatusHoldsReservation(t *testing.T) {
	holds := map[RequestStatus]bool{
		StatusPending:   true,
		StatusApproved:  true,
		StatusDeclined:  false,
		StatusProcessed: false,
		StatusCompleted: false,
	}

	for status, want := range holds {
		if got := status.HoldsReservation(); got != want {
			t.Fatalf("%s.HoldsReservation() = %v, want %v", status, got, want)
		}
	}
}

func TestRequestStatusValid(t *testing.T) {
	if RequestStatus("cancelled").Valid() {
		t.Fatalf("unknown status must not be valid")
	}
	if !StatusPending.Valid() {
		t.Fatalf("pending must be valid")
	}
}

func TestUserRoleValid(t *testing.T) {
	if UserRole("manager").Valid() {
		t.Fatalf("unknown role must not be valid")
	}
	for _, r := range []UserRole{RoleEmployee, RoleHR, RoleAdmin} {
		if !r.Valid() {
			t.Fatalf("role %s must be valid", r)
		}
	}
}
