package outgoing

import (
	"testing"
	"time"
)

func TestCheckBudget_WithinLimit(t *testing.T) {
	if err := checkBudget("100", "50", "200"); err != nil {
		t.Fatalf("expected budget to allow 100+50<=200, got %v", err)
	}
}

func TestCheckBudget_ExceedsLimit(t *testing.T) {
	if err := checkBudget("150", "100", "200"); err == nil {
		t.Fatal("expected an error when contributed+requested exceeds the limit")
	}
}

func TestCheckBudget_ExactlyAtLimit(t *testing.T) {
	if err := checkBudget("100", "100", "200"); err != nil {
		t.Fatalf("expected budget to allow exactly hitting the limit, got %v", err)
	}
}

func TestCheckBudget_InvalidDecimal(t *testing.T) {
	if err := checkBudget("not-a-number", "100", "200"); err == nil {
		t.Fatal("expected an error for an unparseable contributed amount")
	}
}

func TestIntervalCoversNow_WithinFirstWindow(t *testing.T) {
	ok, err := intervalCoversNow("R/2024-01-01T00:00:00Z/P1M", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("intervalCoversNow failed: %v", err)
	}
	if !ok {
		t.Fatal("expected now to be covered by the first monthly window")
	}
}

func TestIntervalCoversNow_BeforeStart(t *testing.T) {
	ok, err := intervalCoversNow("R/2024-02-01T00:00:00Z/P1M", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("intervalCoversNow failed: %v", err)
	}
	if ok {
		t.Fatal("expected now before the interval start to not be covered")
	}
}

func TestIntervalCoversNow_SecondWindowOfRepeatingInterval(t *testing.T) {
	ok, err := intervalCoversNow("R2/2024-01-01T00:00:00Z/P1M", time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("intervalCoversNow failed: %v", err)
	}
	if !ok {
		t.Fatal("expected now to fall within the second monthly window")
	}
}

func TestIntervalCoversNow_PastFiniteRepeatCount(t *testing.T) {
	ok, err := intervalCoversNow("R1/2024-01-01T00:00:00Z/P1M", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("intervalCoversNow failed: %v", err)
	}
	if ok {
		t.Fatal("expected a time past the last repeat window to not be covered")
	}
}

func TestIntervalCoversNow_MalformedInterval(t *testing.T) {
	if _, err := intervalCoversNow("not-an-interval", time.Now()); err == nil {
		t.Fatal("expected an error for a malformed interval")
	}
}

func TestParsePeriod_Combined(t *testing.T) {
	years, months, days, dur, err := parsePeriod("P1Y2M3DT4H5M6S")
	if err != nil {
		t.Fatalf("parsePeriod failed: %v", err)
	}
	if years != 1 || months != 2 || days != 3 {
		t.Fatalf("expected 1y2m3d, got %d/%d/%d", years, months, days)
	}
	wantDur := 4*time.Hour + 5*time.Minute + 6*time.Second
	if dur != wantDur {
		t.Fatalf("expected duration %v, got %v", wantDur, dur)
	}
}

func TestParsePeriod_WeeksConvertToDays(t *testing.T) {
	_, _, days, _, err := parsePeriod("P2W")
	if err != nil {
		t.Fatalf("parsePeriod failed: %v", err)
	}
	if days != 14 {
		t.Fatalf("expected 2 weeks to be 14 days, got %d", days)
	}
}

func TestParsePeriod_Malformed(t *testing.T) {
	if _, _, _, _, err := parsePeriod("not-a-period"); err == nil {
		t.Fatal("expected an error for a malformed period")
	}
}
