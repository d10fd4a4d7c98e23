// Package ports tracks host ports bound by managed instances and picks free
// ones during creation. Allocation is check-then-use: nothing reserves the
// port between picking it and the backend binding it, so creation retries on
// bind conflicts instead of holding a reservation lock.
package ports

import (
	"fmt"
	"net"

	"github.com/craftd/craftd/internal/runtime"
)

// GamePort is the well-known default game port.
const GamePort = 25565

// MaxPort is the upper bound of the extended scan range.
const MaxPort = 65535

// UsedPortsFunc reports the host ports currently bound by instances of a
// backend.
type UsedPortsFunc func() (map[int]bool, error)

// Allocator picks free host ports. Probe, when set, additionally verifies a
// candidate can actually be bound on the host; it is left nil in tests so
// results stay deterministic.
type Allocator struct {
	used  UsedPortsFunc
	probe func(port int) bool
}

// New returns an allocator over the given used-ports source.
func New(used UsedPortsFunc) *Allocator {
	return &Allocator{used: used}
}

// NewWithProbe returns an allocator that also bind-probes candidates.
func NewWithProbe(used UsedPortsFunc) *Allocator {
	return &Allocator{used: used, probe: canBind}
}

// Pick returns a free host port.
//
// If preferred is non-zero and free, it is returned. If preferred is taken
// and allowFallback is false, a PortConflictError naming the port is
// returned. Otherwise the range [max(start, preferred+1), end] is scanned
// ascending for the first free port, extending up to MaxPort before giving
// up. The result is always the lowest free port of the effective range.
func (a *Allocator) Pick(preferred, start, end int, allowFallback bool) (int, error) {
	if start <= 0 {
		return 0, fmt.Errorf("invalid port range start %d", start)
	}
	if end < start {
		return 0, fmt.Errorf("invalid port range %d-%d", start, end)
	}

	used, err := a.used()
	if err != nil {
		return 0, fmt.Errorf("failed to scan used ports: %w", err)
	}

	if preferred > 0 {
		if a.free(used, preferred) {
			return preferred, nil
		}
		if !allowFallback {
			return 0, &runtime.PortConflictError{Port: preferred}
		}
		if preferred+1 > start {
			start = preferred + 1
		}
	}

	for p := start; p <= end; p++ {
		if a.free(used, p) {
			return p, nil
		}
	}

	// Scan range exhausted; extend to the end of the valid port space.
	if end < MaxPort {
		for p := end + 1; p <= MaxPort; p++ {
			if a.free(used, p) {
				return p, nil
			}
		}
	}

	return 0, &runtime.PortConflictError{Port: preferred}
}

func (a *Allocator) free(used map[int]bool, port int) bool {
	if used[port] {
		return false
	}
	if a.probe != nil && !a.probe(port) {
		return false
	}
	return true
}

// canBind checks whether the host will let us listen on the port right now.
func canBind(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}
