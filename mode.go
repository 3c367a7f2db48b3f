package tiercache

import (
	"fmt"
	"strings"
)

// StorageMode selects the tiers a Set writes to. The zero value is Memory.
type StorageMode int

const (
	Memory   StorageMode = iota // memory tier only
	Disk                        // memory and disk tiers
	DiskOnly                    // disk tier only
)

func (m StorageMode) String() string {
	switch m {
	case Memory:
		return "memory"
	case Disk:
		return "disk"
	case DiskOnly:
		return "diskOnly"
	default:
		return fmt.Sprintf("StorageMode(%d)", int(m))
	}
}

func (m StorageMode) valid() bool { return m >= Memory && m <= DiskOnly }

func (m StorageMode) writesMemory() bool { return m == Memory || m == Disk }
func (m StorageMode) writesDisk() bool   { return m == Disk || m == DiskOnly }

// ParseStorageMode accepts "memory", "disk" and "diskOnly" (case-insensitive;
// "disk_only" and "disk-only" also work). "" parses as Memory.
func ParseStorageMode(s string) (StorageMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "memory":
		return Memory, nil
	case "disk":
		return Disk, nil
	case "diskonly", "disk_only", "disk-only":
		return DiskOnly, nil
	}
	return Memory, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

func (m StorageMode) MarshalText() ([]byte, error) {
	if !m.valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(m))
	}
	return []byte(m.String()), nil
}

func (m *StorageMode) UnmarshalText(b []byte) error {
	v, err := ParseStorageMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
