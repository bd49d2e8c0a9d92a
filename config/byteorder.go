package config

import "fmt"

// NativeByteOrder is the byte order a trace's producer used to write
// multi-byte integer and real fields.
type NativeByteOrder uint8

const (
	LittleEndian NativeByteOrder = iota
	BigEndian
)

// ParseNativeByteOrder accepts the external configuration's kebab-case
// spelling plus the short aliases barectf's effective-configuration
// format allows (little|le|big|be).
func ParseNativeByteOrder(s string) (NativeByteOrder, error) {
	switch s {
	case "little-endian", "little", "le":
		return LittleEndian, nil
	case "big-endian", "big", "be":
		return BigEndian, nil
	default:
		return 0, fmt.Errorf("config: unrecognized native-byte-order %q", s)
	}
}

func (o NativeByteOrder) String() string {
	if o == BigEndian {
		return "big-endian"
	}

	return "little-endian"
}

// PreferredDisplayBase is a rendering hint for downstream consumers; it
// never affects wire encoding or decoding.
type PreferredDisplayBase uint8

const (
	Decimal PreferredDisplayBase = iota
	Binary
	Octal
	Hexadecimal
)

// ParseDisplayBase accepts the full kebab-case spelling and the short
// aliases (bin|oct|dec|hex).
func ParseDisplayBase(s string) (PreferredDisplayBase, error) {
	switch s {
	case "decimal", "dec", "":
		return Decimal, nil
	case "binary", "bin":
		return Binary, nil
	case "octal", "oct":
		return Octal, nil
	case "hexadecimal", "hex":
		return Hexadecimal, nil
	default:
		return 0, fmt.Errorf("config: unrecognized preferred-display-base %q", s)
	}
}

func (b PreferredDisplayBase) String() string {
	switch b {
	case Binary:
		return "binary"
	case Octal:
		return "octal"
	case Hexadecimal:
		return "hexadecimal"
	default:
		return "decimal"
	}
}
