// Package chips moves integer chip quantities between stack groups one unit
// at a time.
//
// Every stack group is owned by exactly one Engine. Transfers are queued with
// Enqueue and animated by calling Tick from the owner's loop; a unit only
// leaves its source stack once its animation has completed.
package chips

// Stack is one color-tagged pile of chips.
type Stack struct {
	Index    int
	Count    int
	Color    string
	Capacity int
}

// Full reports whether the stack has reached its capacity.
func (s Stack) Full() bool { return s.Count >= s.Capacity }
