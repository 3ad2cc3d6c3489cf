package hull

import (
	"bytes"
	"slices"
	"sync"

	"github.com/google/uuid"
)

const (
	COLLISION_ENTER EventType = iota
	COLLISION_STAY
	COLLISION_EXIT
	ON_REMOVE
)

// pairKey identifies two touching ships, B is uuid.Nil for the terrain
type pairKey struct {
	a uuid.UUID
	b uuid.UUID
}

// makePairKey creates a normalized pair key with consistent ordering, terrain last
func makePairKey(a, b *Ship) pairKey {
	idA, idB := shipID(a), shipID(b)
	if idA == uuid.Nil || (idB != uuid.Nil && bytes.Compare(idB[:], idA[:]) < 0) {
		idA, idB = idB, idA
	}
	return pairKey{a: idA, b: idB}
}

func shipID(s *Ship) uuid.UUID {
	if s == nil {
		return uuid.Nil
	}
	return s.ID
}

func (k pairKey) compare(other pairKey) int {
	if c := bytes.Compare(k.a[:], other.a[:]); c != 0 {
		return c
	}
	return bytes.Compare(k.b[:], other.b[:])
}

type EventType uint8

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// Collision events, ShipB is nil when ShipA touches the terrain
type CollisionEnterEvent struct {
	ShipA *Ship
	ShipB *Ship
}

func (e CollisionEnterEvent) Type() EventType { return COLLISION_ENTER }

type CollisionStayEvent struct {
	ShipA *Ship
	ShipB *Ship
}

func (e CollisionStayEvent) Type() EventType { return COLLISION_STAY }

type CollisionExitEvent struct {
	ShipA *Ship
	ShipB *Ship
}

func (e CollisionExitEvent) Type() EventType { return COLLISION_EXIT }

// RemoveEvent is sent once the processor of a ship that left the registry is destroyed
type RemoveEvent struct {
	Ship *Ship
}

func (e RemoveEvent) Type() EventType { return ON_REMOVE }

// EventListener - callback for events, called on the scheduler goroutine
type EventListener func(event Event)

type activePair struct {
	shipA *Ship
	shipB *Ship
}

// Events manager
type Events struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventListener

	// Event buffer to send at flush
	buffer []Event

	// Collision tracking for Enter/Stay/Exit detection
	previousActivePairs map[pairKey]activePair
	currentActivePairs  map[pairKey]activePair
}

func NewEvents() *Events {
	return &Events{
		listeners:           make(map[EventType][]EventListener),
		buffer:              make([]Event, 0, 256),
		previousActivePairs: make(map[pairKey]activePair),
		currentActivePairs:  make(map[pairKey]activePair),
	}
}

// Subscribe adds a listener for an event type, safe while the scheduler runs
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// recordContact is called during sub-steps for every task that produced contacts
func (e *Events) recordContact(owner, partner *Ship) {
	key := makePairKey(owner, partner)
	if _, ok := e.currentActivePairs[key]; ok {
		return
	}
	if partner != nil && key.a == partner.ID {
		owner, partner = partner, owner
	}
	e.currentActivePairs[key] = activePair{shipA: owner, shipB: partner}
}

// emitRemove buffers the removal and forgets the pairs of the ship, no exit is sent for them
func (e *Events) emitRemove(ship *Ship) {
	for pair, active := range e.previousActivePairs {
		if active.shipA == ship || active.shipB == ship {
			delete(e.previousActivePairs, pair)
		}
	}
	for pair, active := range e.currentActivePairs {
		if active.shipA == ship || active.shipB == ship {
			delete(e.currentActivePairs, pair)
		}
	}
	e.buffer = append(e.buffer, RemoveEvent{Ship: ship})
}

// processCollisionEvents compares current and previous pairs to detect Enter/Stay/Exit.
// Should be called after all sub-steps
func (e *Events) processCollisionEvents() {
	current := sortedPairs(e.currentActivePairs)
	for _, key := range current {
		pair := e.currentActivePairs[key]
		if _, ok := e.previousActivePairs[key]; ok {
			e.buffer = append(e.buffer, CollisionStayEvent{ShipA: pair.shipA, ShipB: pair.shipB})
		} else {
			e.buffer = append(e.buffer, CollisionEnterEvent{ShipA: pair.shipA, ShipB: pair.shipB})
		}
	}

	for _, key := range sortedPairs(e.previousActivePairs) {
		if _, ok := e.currentActivePairs[key]; !ok {
			pair := e.previousActivePairs[key]
			e.buffer = append(e.buffer, CollisionExitEvent{ShipA: pair.shipA, ShipB: pair.shipB})
		}
	}

	// Swap for next tick and clear current
	e.previousActivePairs, e.currentActivePairs = e.currentActivePairs, e.previousActivePairs
	clear(e.currentActivePairs)
}

func sortedPairs(pairs map[pairKey]activePair) []pairKey {
	keys := make([]pairKey, 0, len(pairs))
	for key := range pairs {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, pairKey.compare)
	return keys
}

// flush sends all buffered events and clears the buffer
func (e *Events) flush() {
	e.processCollisionEvents()

	for _, event := range e.buffer {
		for _, listener := range e.subscribers(event.Type()) {
			listener(event)
		}
	}
	e.buffer = e.buffer[:0]
}

func (e *Events) subscribers(eventType EventType) []EventListener {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.listeners[eventType]
}
