package domain

import (
	"errors"
	"testing"
	"time"
)

func newSeat() *Seat {
	return &Seat{ID: "seat-1", ScheduleID: "sch-1", SeatNumber: "1", Price: 50000, Status: SeatStatusAvailable}
}

func TestSeat_HoldAndConfirm(t *testing.T) {
	s := newSeat()
	if err := s.Hold("user-1", t0, 5*time.Minute); err != nil {
		t.Fatalf("Hold: %v", err)
	}
	if s.Status != SeatStatusTemporarilyHeld || s.HolderUserID != "user-1" {
		t.Fatalf("unexpected seat after hold: %+v", s)
	}
	if !s.ExpiresAt.Equal(t0.Add(5 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, want t0+5m", s.ExpiresAt)
	}
	if err := s.Hold("user-2", t0, time.Minute); !errors.Is(err, ErrSeatUnavailable) {
		t.Errorf("second hold err = %v, want ErrSeatUnavailable", err)
	}
	if !s.IsHeldBy("user-1", t0.Add(time.Minute)) || s.IsHeldBy("user-2", t0) {
		t.Error("IsHeldBy mismatch")
	}

	if err := s.Confirm(t0.Add(time.Minute)); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if s.Status != SeatStatusReserved || s.ExpiresAt != nil {
		t.Errorf("unexpected seat after confirm: %+v", s)
	}
	if err := s.Confirm(t0); !errors.Is(err, ErrSeatNotHeld) {
		t.Errorf("double confirm err = %v, want ErrSeatNotHeld", err)
	}
}

func TestSeat_LazyExpiry(t *testing.T) {
	s := newSeat()
	_ = s.Hold("user-1", t0, time.Minute)

	at := t0.Add(61 * time.Second)
	if !s.IsAvailable(at) {
		t.Error("lapsed hold must report available")
	}
	if s.Status != SeatStatusTemporarilyHeld {
		t.Error("IsAvailable must not mutate")
	}
	if s.IsAvailable(t0.Add(30 * time.Second)) {
		t.Error("live hold must not be available")
	}

	if s.ReclaimIfExpired(t0.Add(30 * time.Second)) {
		t.Error("live hold must not be reclaimed")
	}
	if !s.ReclaimIfExpired(at) {
		t.Fatal("lapsed hold should be reclaimed")
	}
	if s.Status != SeatStatusAvailable || s.HolderUserID != "" || s.ExpiresAt != nil {
		t.Errorf("unexpected seat after reclaim: %+v", s)
	}
	if err := s.Hold("user-2", at, time.Minute); err != nil {
		t.Errorf("reclaimed seat should be holdable: %v", err)
	}
}

func TestSeat_ReservedNeverAvailable(t *testing.T) {
	s := newSeat()
	_ = s.Hold("user-1", t0, time.Minute)
	_ = s.Confirm(t0)
	if s.IsAvailable(t0.Add(24 * time.Hour)) {
		t.Error("reserved seat must never be available")
	}
	if s.ReclaimIfExpired(t0.Add(24 * time.Hour)) {
		t.Error("reserved seat must never be reclaimed")
	}
}

func TestSeatVersion_Matches(t *testing.T) {
	s := newSeat()
	available := s.Version()
	if !available.Matches(s) {
		t.Fatal("a seat must match its own version")
	}

	if err := s.Hold("user-1", t0, time.Minute); err != nil {
		t.Fatalf("Hold: %v", err)
	}
	if available.Matches(s) {
		t.Error("a held seat must not match its available version")
	}
	held := s.Version()

	// same holder, later hold: a different hold
	again := *s
	later := t0.Add(time.Second)
	again.HeldAt = &later
	if held.Matches(&again) {
		t.Error("a new hold by the same user must not match")
	}

	// the version is a copy; mutating the seat does not move it
	*s.HeldAt = t0.Add(time.Hour)
	if held.Matches(s) {
		t.Error("version must keep the hold start it was taken with")
	}

	if err := s.Confirm(t0); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if held.Matches(s) {
		t.Error("a confirmed seat must not match its held version")
	}
}
