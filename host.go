package hull

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/akmonengine/hull/actor"
	"github.com/google/uuid"
)

var (
	// ErrShipRegistered is returned by ShipSet.Add for a ship already listed in a world
	ErrShipRegistered = errors.New("ship already registered")
	ErrNilShip        = errors.New("nil ship")
)

// WorldKey identifies a host world, or a region of it, owning one scheduler
type WorldKey string

// BodyRegistry lists the ships to simulate. It is called once per tick by the scheduler
// and must return a slice the caller may keep.
type BodyRegistry interface {
	ListActiveBodies(key WorldKey) []*Ship
}

// Observer receives the transforms pushed by the scheduler on the broadcast cadence
type Observer interface {
	Publish(ship *Ship, tick uint64, transform actor.RigidTransform)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(ship *Ship, tick uint64, transform actor.RigidTransform)

func (f ObserverFunc) Publish(ship *Ship, tick uint64, transform actor.RigidTransform) {
	f(ship, tick, transform)
}

// Host is the pause signal of the host program
type Host interface {
	// Paused is only consulted on non headless hosts
	Paused() bool
	// Headless hosts (dedicated servers) always tick
	Headless() bool
}

// HostState is a Host driven by the host program
type HostState struct {
	paused   atomic.Bool
	headless bool
}

func NewHostState(headless bool) *HostState {
	return &HostState{headless: headless}
}

func (h *HostState) SetPaused(paused bool) {
	h.paused.Store(paused)
}

func (h *HostState) Paused() bool {
	return h.paused.Load()
}

func (h *HostState) Headless() bool {
	return h.headless
}

// ShipSet is an in-memory BodyRegistry. Add and Remove are the lifecycle events of the host;
// the scheduler only copies the slice, so the lock is held for the copy only.
// A ship belongs to one world at a time.
type ShipSet struct {
	mu     sync.RWMutex
	ships  map[WorldKey][]*Ship
	worlds map[uuid.UUID]WorldKey
}

func NewShipSet() *ShipSet {
	return &ShipSet{
		ships:  make(map[WorldKey][]*Ship),
		worlds: make(map[uuid.UUID]WorldKey),
	}
}

// Add appends ship to the world, it is simulated from the next tick.
// A ship already listed, in this world or another, is rejected: Remove it first to move it.
func (s *ShipSet) Add(key WorldKey, ship *Ship) error {
	if ship == nil || ship.Processor == nil {
		return ErrNilShip
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if world, ok := s.worlds[ship.ID]; ok {
		return fmt.Errorf("ship %v in world %q: %w", ship, world, ErrShipRegistered)
	}
	s.worlds[ship.ID] = key
	s.ships[key] = append(s.ships[key], ship)
	return nil
}

// World returns the world the ship is listed in
func (s *ShipSet) World(id uuid.UUID) (WorldKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.worlds[id]
	return key, ok
}

// Remove takes the ship out of the world, its processor is destroyed at the next tick
func (s *ShipSet) Remove(key WorldKey, id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ships := s.ships[key]
	k := slices.IndexFunc(ships, func(ship *Ship) bool { return ship.ID == id })
	if k == -1 {
		return false
	}
	s.ships[key] = slices.Delete(slices.Clone(ships), k, k+1)
	delete(s.worlds, id)
	return true
}

func (s *ShipSet) ListActiveBodies(key WorldKey) []*Ship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.ships[key])
}

func (s *ShipSet) Len(key WorldKey) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ships[key])
}
