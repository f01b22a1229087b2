package gen

// DrainChannelIntoSlice reads from a channel until it is empty (or closed), and returns all items in a slice
func DrainChannelIntoSlice[T any](ch chan T) []T {
	done := false
	slice := make([]T, 0, len(ch)) // optimize for the common case where we're the only reader
	for !done {
		select {
		case v, ok := <-ch:
			if !ok {
				done = true
			} else {
				slice = append(slice, v)
			}
		default:
			done = true
		}
	}
	return slice
}

// TrySend sends v to ch if there is room. Returns false if the channel is full.
func TrySend[T any](ch chan T, v T) bool {
	select {
	case ch <- v:
		return true
	default:
		return false
	}
}
