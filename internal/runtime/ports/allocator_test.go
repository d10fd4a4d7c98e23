package ports

import (
	"errors"
	"testing"

	"github.com/craftd/craftd/internal/runtime"
)

func fixedUsed(ports ...int) UsedPortsFunc {
	return func() (map[int]bool, error) {
		used := make(map[int]bool, len(ports))
		for _, p := range ports {
			used[p] = true
		}
		return used, nil
	}
}

func TestPickReturnsPreferredWhenFree(t *testing.T) {
	a := New(fixedUsed())
	port, err := a.Pick(25565, 25565, 25600, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if port != 25565 {
		t.Fatalf("expected 25565, got %d", port)
	}
}

func TestPickConflictWithoutFallback(t *testing.T) {
	a := New(fixedUsed(25565))
	_, err := a.Pick(25565, 25565, 25600, false)
	if err == nil {
		t.Fatalf("expected conflict error")
	}
	var conflict *runtime.PortConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected PortConflictError, got %T: %v", err, err)
	}
	if conflict.Port != 25565 {
		t.Fatalf("expected conflict on 25565, got %d", conflict.Port)
	}
}

func TestPickFallsBackToNextFreePort(t *testing.T) {
	a := New(fixedUsed(25565))
	port, err := a.Pick(25565, 25565, 25600, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if port != 25566 {
		t.Fatalf("expected 25566, got %d", port)
	}
}

func TestPickSkipsContiguousUsedRange(t *testing.T) {
	a := New(fixedUsed(25565, 25566, 25567))
	port, err := a.Pick(25565, 25565, 25600, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if port != 25568 {
		t.Fatalf("expected 25568, got %d", port)
	}
}

func TestPickWithoutPreferredUsesLowestFree(t *testing.T) {
	a := New(fixedUsed(25565))
	port, err := a.Pick(0, 25565, 25600, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if port != 25566 {
		t.Fatalf("expected 25566, got %d", port)
	}
}

func TestPickExtendsScanBeyondRangeEnd(t *testing.T) {
	used := func() (map[int]bool, error) {
		m := make(map[int]bool)
		for p := 25565; p <= 25570; p++ {
			m[p] = true
		}
		return m, nil
	}
	a := New(used)
	port, err := a.Pick(0, 25565, 25570, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if port != 25571 {
		t.Fatalf("expected extended scan to yield 25571, got %d", port)
	}
}

func TestPickFailsWhenEverythingTaken(t *testing.T) {
	used := func() (map[int]bool, error) {
		m := make(map[int]bool)
		for p := 1; p <= MaxPort; p++ {
			m[p] = true
		}
		return m, nil
	}
	a := New(used)
	_, err := a.Pick(25565, 25565, 25600, true)
	var conflict *runtime.PortConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected PortConflictError, got %v", err)
	}
}

func TestPickInvalidRange(t *testing.T) {
	a := New(fixedUsed())
	if _, err := a.Pick(0, 25600, 25565, true); err == nil {
		t.Fatalf("expected error for inverted range")
	}
	if _, err := a.Pick(0, 0, 25600, true); err == nil {
		t.Fatalf("expected error for zero range start")
	}
}

func TestPickPropagatesScanError(t *testing.T) {
	a := New(func() (map[int]bool, error) {
		return nil, errors.New("engine down")
	})
	if _, err := a.Pick(25565, 25565, 25600, true); err == nil {
		t.Fatalf("expected scan error to propagate")
	}
}
