package math

import "golang.org/x/exp/constraints"

func Min[T constraints.Integer](a, b T) T {
	if a < b {
		return a
	}
	return b
}
