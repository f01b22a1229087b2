package nn

import "fmt"

// LabelTable is the immutable list of class names produced by a model.
// Class i has the name Names[i]. The table is supplied once, when the
// model is loaded, and never changes afterwards.
type LabelTable struct {
	names []string
}

// Create a label table. The slice is copied.
func NewLabelTable(names []string) (*LabelTable, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("Label table is empty")
	}
	if len(names) > MaxClasses {
		return nil, fmt.Errorf("Label table has %v classes, but the maximum is %v", len(names), MaxClasses)
	}
	return &LabelTable{
		names: append([]string(nil), names...),
	}, nil
}

// Number of classes
func (t *LabelTable) Len() int {
	return len(t.names)
}

// Return the name of class 'class', or ErrIndexOutOfRange
func (t *LabelTable) Name(class int) (string, error) {
	if class < 0 || class >= len(t.names) {
		return "", fmt.Errorf("%w: class %v, table size %v", ErrIndexOutOfRange, class, len(t.names))
	}
	return t.names[class], nil
}

// Return a copy of all class names
func (t *LabelTable) Names() []string {
	return append([]string(nil), t.names...)
}
