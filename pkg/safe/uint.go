// Package safe provides checked conversions from signed integers to the
// unsigned widths used throughout the chain model.
package safe

import (
	"fmt"
	"math"
)

// Uint32 converts a signed integer to uint32, rejecting negative values
// and values past math.MaxUint32.
func Uint32[T ~int | ~int32 | ~int64](v T) (uint32, error) {
	if v < 0 {
		return 0, fmt.Errorf("value %d is negative", v)
	}
	if uint64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("value %d exceeds uint32", v)
	}
	return uint32(v), nil
}

// Uint64 converts a signed integer to uint64, rejecting negative values.
func Uint64[T ~int | ~int32 | ~int64](v T) (uint64, error) {
	if v < 0 {
		return 0, fmt.Errorf("value %d is negative", v)
	}
	return uint64(v), nil
}
