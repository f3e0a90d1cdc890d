package services

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// idLetters leaves out I, L and O so ids read cleanly over the phone.
const idLetters = "ABCDEFGHJKMNPQRSTUVWXYZ"

// IDMinter hands out ticket ids of the form T042KX: a three digit counter
// that advances on every call, plus two random letters. Ids never contain
// an underscore, which separates fields in callback payloads.
type IDMinter struct {
	mu      sync.Mutex
	counter int
	intn    func(n int) int
}

// NewIDMinter seeds the counter from the clock so restarts do not replay
// the same sequence.
func NewIDMinter(now time.Time) *IDMinter {
	return &IDMinter{counter: int(now.Unix() % 1000), intn: rand.IntN}
}

func (m *IDMinter) Next() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter = (m.counter + 1) % 1000
	return fmt.Sprintf("T%03d%c%c", m.counter, idLetters[m.intn(len(idLetters))], idLetters[m.intn(len(idLetters))])
}
