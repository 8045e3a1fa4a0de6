package server

import (
	"sync"

	"github.com/siotlab/bdsc/internal/protocol"
)

// Store holds register values per client identity.
type Store struct {
	mu   sync.RWMutex
	regs map[protocol.Identity]map[byte]uint16
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{regs: make(map[protocol.Identity]map[byte]uint16)}
}

// Write sets a register and returns the stored value
func (s *Store) Write(id protocol.Identity, register byte, value uint16) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()

	regs, ok := s.regs[id]
	if !ok {
		regs = make(map[byte]uint16)
		s.regs[id] = regs
	}
	regs[register] = value
	return value
}

// Read returns a register value; unset registers read as zero
func (s *Store) Read(id protocol.Identity, register byte) uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.regs[id][register]
}

// Clients returns how many identities have written at least once
func (s *Store) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.regs)
}
