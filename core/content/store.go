// Package content is the paged key/value record shown during a review. The
// command handler writes one item at a time into it; the flow machine and the
// display adapter read pages back out of it.
//
// All storage is fixed size and owned by the device context. Nothing here
// allocates after start-up.
package content

import (
	"github.com/pkg/errors"
)

// Capacities of one review item.
const (
	MaxKeyLen   = 63
	MaxValueLen = 4095
)

var (
	// ErrTooLong is returned by SetItem when a field does not fit. The store
	// never truncates on its own.
	ErrTooLong = errors.New("review field exceeds capacity")
	// ErrPageOutOfRange is returned when a cursor points past the last page.
	ErrPageOutOfRange = errors.New("page out of range")
)

// Target is a device model. It fixes the number of characters per page.
type Target string

const (
	TargetNanoS Target = "nanos"
	TargetNanoX Target = "nanox"
)

// PageSize returns the number of value characters shown per page.
func (t Target) PageSize() (int, error) {
	switch t {
	case TargetNanoS:
		// two label lines of 17 characters
		return 34, nil
	case TargetNanoX:
		// four label lines of 16 characters
		return 64, nil
	}
	return 0, errors.Errorf("unknown device target %q", t)
}

// Cursor identifies the rendered item and page.
// Invariant: 0 <= Page < Pages and Pages >= 1.
type Cursor struct {
	Item  int
	Page  int
	Pages int
}

// Store holds the current review item.
type Store struct {
	key      [MaxKeyLen]byte
	keyLen   int
	value    [MaxValueLen]byte
	valueLen int
	pageSize int
}

// Init sets the page size and clears the record.
func (s *Store) Init(pageSize int) error {
	if pageSize <= 0 || pageSize > MaxValueLen {
		return errors.Errorf("invalid page size %d", pageSize)
	}
	s.pageSize = pageSize
	s.Reset()
	return nil
}

// Reset empties the record.
func (s *Store) Reset() {
	s.keyLen, s.valueLen = 0, 0
}

// SetItem replaces the current item. On failure the previous item stays.
func (s *Store) SetItem(key, value string) error {
	if len(key) > MaxKeyLen {
		return errors.Wrapf(ErrTooLong, "key is %d bytes, max %d", len(key), MaxKeyLen)
	}
	if len(value) > MaxValueLen {
		return errors.Wrapf(ErrTooLong, "value is %d bytes, max %d", len(value), MaxValueLen)
	}
	s.keyLen = copy(s.key[:], key)
	s.valueLen = copy(s.value[:], value)
	return nil
}

// PageSize returns the characters per page in use.
func (s *Store) PageSize() int { return s.pageSize }

// PageCount returns the number of pages of the current value.
func (s *Store) PageCount() int {
	return ComputePageCount(s.valueLen, s.pageSize)
}

// ComputePageCount returns ceil(valueLen / pageSize), and 1 for an empty value.
func ComputePageCount(valueLen, pageSize int) int {
	if valueLen <= 0 || pageSize <= 0 {
		return 1
	}
	return (valueLen + pageSize - 1) / pageSize
}

// RenderPage returns the key and the value window for c.Page. The returned
// slices alias the store and stay valid until the next SetItem.
func (s *Store) RenderPage(c Cursor) (key []byte, page []byte, err error) {
	pages := s.PageCount()
	if c.Page < 0 || c.Page >= pages {
		return nil, nil, errors.Wrapf(ErrPageOutOfRange, "page %d of %d", c.Page, pages)
	}

	start := c.Page * s.pageSize
	end := min(start+s.pageSize, s.valueLen)
	if start > end {
		start = end
	}
	return s.key[:s.keyLen], s.value[start:end], nil
}

// Key returns the current key.
func (s *Store) Key() []byte { return s.key[:s.keyLen] }

// Value returns the whole current value.
func (s *Store) Value() []byte { return s.value[:s.valueLen] }
