package clock

import (
	"testing"
	"time"
)

func TestFakeAdvance(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := NewFake(start)

	if got := fake.Now(); !got.Equal(start) {
		t.Fatalf("Now() = %v, want %v", got, start)
	}

	fake.Advance(90 * time.Minute)
	if got := fake.Now(); !got.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("after Advance Now() = %v", got)
	}

	later := start.Add(72 * time.Hour)
	fake.Set(later)
	if got := fake.Now(); !got.Equal(later) {
		t.Fatalf("after Set Now() = %v", got)
	}
}

func TestFakeTicker(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	fake := NewFake(start)
	ticker := fake.NewTicker(time.Minute)
	defer ticker.Stop()

	fake.Advance(30 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("ticker fired before its interval")
	default:
	}

	fake.Advance(30 * time.Second)
	select {
	case got := <-ticker.C:
		if !got.Equal(start.Add(time.Minute)) {
			t.Fatalf("tick = %v, want %v", got, start.Add(time.Minute))
		}
	default:
		t.Fatal("ticker did not fire")
	}

	ticker.Stop()
	fake.Advance(5 * time.Minute)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestRealIsUTC(t *testing.T) {
	if loc := Real().Now().Location(); loc != time.UTC {
		t.Fatalf("location = %v, want UTC", loc)
	}
}
