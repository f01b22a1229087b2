// Package streak counts consecutive cycles that commit the same class
package streak

import "fmt"

// AnyClass as a target means that any class counts, as long as it repeats
const AnyClass = -1

// Counter counts consecutive committed predictions of a class.
// A cycle with no prediction, or with a different class, resets the count.
// The streak is reached once the count exceeds Length.
type Counter struct {
	Target int // Class index, or AnyClass
	Length int // The streak is reached when more than this many consecutive cycles match

	class  int
	count  int
	inside bool
}

// State is the outcome of a single observation
type State struct {
	Class   int  `json:"class"`   // Class of the current run, or -1
	Count   int  `json:"count"`   // Length of the current run
	Reached bool `json:"reached"` // Count > Length
	Started bool `json:"started"` // True only on the first cycle of a run that has Reached
}

func NewCounter(target, length int) (*Counter, error) {
	if target < AnyClass {
		return nil, fmt.Errorf("Invalid streak target class %v", target)
	}
	if length < 0 {
		return nil, fmt.Errorf("Invalid streak length %v", length)
	}
	c := &Counter{
		Target: target,
		Length: length,
	}
	c.Reset()
	return c, nil
}

// Observe records the committed class of one cycle (-1 for no prediction)
func (c *Counter) Observe(class int) State {
	prev := c.class
	switch {
	case class < 0:
		c.class = -1
		c.count = 0
	case c.Target != AnyClass && class != c.Target:
		c.class = -1
		c.count = 0
	case class == c.class:
		if c.count < c.Length+1 {
			c.count++
		}
	default:
		c.class = class
		c.count = 1
	}
	reached := c.count > c.Length
	started := reached && (!c.inside || c.class != prev)
	c.inside = reached
	return State{
		Class:   c.class,
		Count:   c.count,
		Reached: reached,
		Started: started,
	}
}

// Count of the current run
func (c *Counter) Count() int {
	return c.count
}

// Reached is true while the current run is longer than Length
func (c *Counter) Reached() bool {
	return c.inside
}

func (c *Counter) Reset() {
	c.class = -1
	c.count = 0
	c.inside = false
}
