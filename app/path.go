package app

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// MaxPathLen is the deepest derivation path accepted.
	MaxPathLen = 10
	// Hardened marks a hardened path component.
	Hardened uint32 = 0x80000000
)

// ErrInvalidPath is returned for malformed or unsupported derivation paths.
var ErrInvalidPath = errors.New("invalid derivation path")

// Path is a BIP32-style derivation path held in fixed storage.
type Path struct {
	components [MaxPathLen]uint32
	n          int
}

// ReadPath decodes [count][count x uint32 big endian]. Trailing bytes are an error.
func ReadPath(data []byte) (Path, error) {
	var p Path
	if len(data) < 1 {
		return p, errors.Wrap(ErrInvalidPath, "empty")
	}
	n := int(data[0])
	if n == 0 || n > MaxPathLen {
		return p, errors.Wrapf(ErrInvalidPath, "%d components", n)
	}
	if len(data) != 1+4*n {
		return p, errors.Wrapf(ErrInvalidPath, "%d bytes for %d components", len(data), n)
	}
	for i := 0; i < n; i++ {
		p.components[i] = binary.BigEndian.Uint32(data[1+4*i:])
	}
	p.n = n
	return p, nil
}

// EncodePath is the inverse of ReadPath.
func EncodePath(components ...uint32) []byte {
	out := make([]byte, 1+4*len(components))
	out[0] = byte(len(components))
	for i, c := range components {
		binary.BigEndian.PutUint32(out[1+4*i:], c)
	}
	return out
}

// Len returns the number of components.
func (p Path) Len() int { return p.n }

// Bytes returns the wire encoding of p.
func (p Path) Bytes() []byte { return EncodePath(p.components[:p.n]...) }

// Verify requires a hardened first component.
func (p Path) Verify() error {
	if p.n == 0 || p.components[0]&Hardened == 0 {
		return errors.Wrap(ErrInvalidPath, "purpose must be hardened")
	}
	return nil
}

// String formats p as m/44'/0'/1.
func (p Path) String() string {
	var sb strings.Builder
	sb.WriteString("m")
	for _, c := range p.components[:p.n] {
		sb.WriteByte('/')
		sb.WriteString(strconv.FormatUint(uint64(c&^Hardened), 10))
		if c&Hardened != 0 {
			sb.WriteByte('\'')
		}
	}
	return sb.String()
}
