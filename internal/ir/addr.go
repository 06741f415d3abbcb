package ir

import (
	"fmt"

	"fortio.org/safecast"
)

// ByteAddr is a virtual address in the analyzed image.
type ByteAddr uint64

// OptAddr is an optional ByteAddr. The zero value is absent.
type OptAddr struct {
	addr  ByteAddr
	valid bool
}

// NoAddr is the absent address.
var NoAddr = OptAddr{}

// Addr returns a present OptAddr holding a.
func Addr(a ByteAddr) OptAddr {
	return OptAddr{addr: a, valid: true}
}

// AddrFromInt converts a signed offset into an address, rejecting negatives.
func AddrFromInt(v int64) (OptAddr, error) {
	u, err := safecast.Conv[uint64](v)
	if err != nil {
		return NoAddr, fmt.Errorf("address %d: %w", v, err)
	}
	return Addr(ByteAddr(u)), nil
}

// IsSet reports whether the address is present.
func (a OptAddr) IsSet() bool { return a.valid }

// Get returns the address and whether it is present.
func (a OptAddr) Get() (ByteAddr, bool) { return a.addr, a.valid }

// MustGet returns the address, panicking when absent.
func (a OptAddr) MustGet() ByteAddr {
	if !a.valid {
		panic("ir: MustGet on absent address")
	}
	return a.addr
}

// Equal reports whether both are absent or both hold the same address.
func (a OptAddr) Equal(b OptAddr) bool {
	if a.valid != b.valid {
		return false
	}
	return !a.valid || a.addr == b.addr
}

func (a OptAddr) String() string {
	if !a.valid {
		return "none"
	}
	return a.addr.String()
}

func (a ByteAddr) String() string {
	return fmt.Sprintf("0x%x", uint64(a))
}
