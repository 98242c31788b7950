package betting

// ProcessSelection turns a raw per-stack selection request into the amounts
// that may actually be committed. Each entry below min is dropped and each
// entry above max is capped at max. Entries are then capped, in stack order,
// so that totalSent plus everything accepted never exceeds max; an entry cut
// below min by that cap is dropped too, which keeps the function idempotent.
func ProcessSelection(requested []int, min, max, totalSent int) []int {
	result := make([]int, len(requested))
	room := max - totalSent
	for i, n := range requested {
		switch {
		case n < min:
			n = 0
		case n > max:
			n = max
		}
		if n > room {
			n = room
		}
		if n < min || n < 0 {
			n = 0
		}
		result[i] = n
		room -= n
	}
	return result
}

// clampTo caps every entry of v at limit[i] and floors it at zero, in place.
func clampTo(v, limit []int) {
	for i := range v {
		if i >= len(limit) {
			v[i] = 0
			continue
		}
		v[i] = max(0, min(v[i], limit[i]))
	}
}
