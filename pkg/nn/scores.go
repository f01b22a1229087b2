package nn

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Size in bytes of a single score in the raw accelerator output
const ScoreSize = 4

// ScoreBuffer holds the per-class scores of a single inference cycle.
// The backing storage is allocated once, with the capacity of the label table,
// and is overwritten by every call to Load.
type ScoreBuffer struct {
	storage []float32
	scores  []float32
}

func NewScoreBuffer(capacity int) *ScoreBuffer {
	return &ScoreBuffer{
		storage: make([]float32, capacity),
	}
}

// Capacity is the maximum number of scores that the buffer can hold
func (b *ScoreBuffer) Capacity() int {
	return len(b.storage)
}

// Load interprets raw as a sequence of little-endian float32 values.
// The number of scores is len(raw) / ScoreSize. Trailing bytes are ignored.
func (b *ScoreBuffer) Load(raw []byte) error {
	n := len(raw) / ScoreSize
	if n > len(b.storage) {
		b.scores = b.storage[:0]
		return fmt.Errorf("%w: %v scores, capacity %v", ErrIndexOutOfRange, n, len(b.storage))
	}
	for i := 0; i < n; i++ {
		b.storage[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*ScoreSize:]))
	}
	b.scores = b.storage[:n]
	return nil
}

// LoadFloats copies already decoded scores into the buffer
func (b *ScoreBuffer) LoadFloats(scores []float32) error {
	if len(scores) > len(b.storage) {
		b.scores = b.storage[:0]
		return fmt.Errorf("%w: %v scores, capacity %v", ErrIndexOutOfRange, len(scores), len(b.storage))
	}
	b.scores = b.storage[:len(scores)]
	copy(b.scores, scores)
	return nil
}

// Scores of the current cycle. The slice is only valid until the next Load.
func (b *ScoreBuffer) Scores() []float32 {
	return b.scores
}

// Len is the number of scores in the current cycle
func (b *ScoreBuffer) Len() int {
	return len(b.scores)
}

// EncodeScores produces the raw byte layout that Load consumes.
// This is what an accelerator emits, and is used when replaying recordings.
func EncodeScores(scores []float32) []byte {
	raw := make([]byte, len(scores)*ScoreSize)
	for i, s := range scores {
		binary.LittleEndian.PutUint32(raw[i*ScoreSize:], math.Float32bits(s))
	}
	return raw
}
