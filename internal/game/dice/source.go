package dice

import (
	"crypto/rand"
	"math/big"
	"sync"
)

// cryptoSource implements Source using crypto/rand.
//
// Invariant: values are uniformly distributed in [0, n) for any n > 0.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
func NewCryptoSource() Source {
	return &cryptoSource{}
}

// Intn returns a cryptographically secure random int in [0, n).
//
// Precondition: n > 0. Panics with "dice: Intn called with n <= 0" otherwise.
func (c *cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("dice: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// SeqSource replays a fixed sequence of die faces. It is meant for tests
// and for replaying physical rolls entered by players.
//
// Faces are 1-based die values; Intn returns face-1 clamped into [0, n).
// When the sequence is exhausted it wraps around.
type SeqSource struct {
	mu    sync.Mutex
	faces []int
	pos   int
}

// NewSeqSource creates a SeqSource over faces.
//
// Precondition: len(faces) > 0.
func NewSeqSource(faces ...int) *SeqSource {
	if len(faces) == 0 {
		panic("dice: NewSeqSource requires at least one face")
	}
	return &SeqSource{faces: faces}
}

// Intn returns the next face minus one, clamped into [0, n).
func (s *SeqSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.faces[s.pos%len(s.faces)] - 1
	s.pos++
	switch {
	case v < 0:
		return 0
	case v >= n:
		return n - 1
	}
	return v
}
