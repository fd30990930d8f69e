package math

import "golang.org/x/exp/constraints"

// DivRoundUp divides `a` by `b`, rounding any remainder up. `b` must be
// nonzero.
func DivRoundUp[T constraints.Integer](a, b T) T {
	if a%b == 0 {
		return a / b
	}
	return a/b + 1
}
