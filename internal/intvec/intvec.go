// Package intvec provides helpers over fixed-length integer vectors used for
// per-stack chip counts.
package intvec

import (
	"strconv"
	"strings"
)

// Zeros returns a vector of n zeros.
func Zeros(n int) []int {
	return Fill(n, 0)
}

// Fill returns a vector of n copies of value.
func Fill(n, value int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = value
	}
	return out
}

// Copy returns an independent copy of v. A nil input yields nil.
func Copy(v []int) []int {
	if v == nil {
		return nil
	}
	out := make([]int, len(v))
	copy(out, v)
	return out
}

// Sum returns the sum of all elements.
func Sum(v []int) int {
	total := 0
	for _, x := range v {
		total += x
	}
	return total
}

// Equal reports whether a and b have the same length and elements.
func Equal(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// String formats v as "[1, 2, 3]".
func String(v []int) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(x))
	}
	b.WriteByte(']')
	return b.String()
}
