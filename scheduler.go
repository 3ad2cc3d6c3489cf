package hull

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akmonengine/hull/actor"
	"github.com/akmonengine/hull/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

// ErrNoBodies is returned by NewScheduler without a BodyRegistry
var ErrNoBodies = errors.New("scheduler needs a body registry")

// Deps are the collaborators of a Scheduler, provided by the host
type Deps struct {
	Bodies BodyRegistry
	// Host nil never pauses
	Host Host
	// Terrain nil disables terrain collisions
	Terrain  Terrain
	Observer Observer
	// Logger nil uses log.Default()
	Logger *log.Logger
	// Pool nil makes the scheduler own a pool of Config.Workers goroutines
	Pool *WorkerPool
}

// Scheduler runs the fixed rate simulation of one world
type Scheduler struct {
	key    WorldKey
	cfg    Config
	deps   Deps
	logger *log.Logger

	pool     *WorkerPool
	ownsPool bool
	grid     *SpatialGrid
	gravity  mgl64.Vec3

	Events *Events

	// Guards a tick, Step can be called by hand while the loop is not started
	stepMu sync.Mutex
	ships  []*Ship
	lag    lagSmoother

	ticks    atomic.Uint64
	lostTime atomic.Int64

	started  atomic.Bool
	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// Set while listeners and the Observer run on the stepping goroutine
	dispatching atomic.Bool

	// afterFanIn runs once every task of a sub-step is done, before any resolution
	afterFanIn func(tasks []*CollisionTask)
}

func NewScheduler(key WorldKey, cfg Config, deps Deps) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Bodies == nil {
		return nil, ErrNoBodies
	}

	base := deps.Logger
	if base == nil {
		base = log.Default()
	}

	s := &Scheduler{
		key:     key,
		cfg:     cfg,
		deps:    deps,
		logger:  log.New(base.Writer(), fmt.Sprintf("%s[%s] ", base.Prefix(), key), base.Flags()),
		pool:    deps.Pool,
		grid:    NewSpatialGrid(cfg.CellSize, cfg.GridCells),
		gravity: cfg.GravityVec(),
		Events:  NewEvents(),
		lag:     newLagSmoother(cfg.TickPeriod, cfg.MaxLostTime),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if s.pool == nil {
		s.pool = NewWorkerPool(cfg.Workers)
		s.ownsPool = true
	}

	return s, nil
}

func (s *Scheduler) Key() WorldKey {
	return s.key
}

// Ticks counts the ticks that ran, paused ticks excluded
func (s *Scheduler) Ticks() uint64 {
	return s.ticks.Load()
}

// LostTime is the time debt the loop is catching up, at most Config.MaxLostTime
func (s *Scheduler) LostTime() time.Duration {
	return time.Duration(s.lostTime.Load())
}

func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Start runs the loop on its own OS thread. A stopped scheduler cannot be started again.
func (s *Scheduler) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.running.Store(true)
	go s.loop()
}

// Stop asks the loop to exit and waits for the tick in progress to finish.
// From an event listener or the Observer, it cannot wait for the tick delivering the
// callback: it returns at once and the loop exits when that tick ends.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.started.Load() && !s.dispatching.Load() {
			<-s.done
		}
		if s.ownsPool {
			s.pool.Close()
		}
	})
}

func (s *Scheduler) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(s.done)
	defer s.running.Store(false)

	s.logger.Printf("scheduler started: tick %v, %d sub-steps", s.cfg.TickPeriod, s.cfg.SubSteps)
	defer func() {
		s.logger.Printf("scheduler stopped after %d ticks", s.Ticks())
	}()

	timer := time.NewTimer(s.cfg.TickPeriod)
	timer.Stop()

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		start := time.Now()
		s.safeStep()

		sleep := s.lag.settle(time.Since(start))
		s.lostTime.Store(int64(s.lag.lostTime()))
		if sleep <= 0 {
			continue
		}

		timer.Reset(sleep)
		sleepStart := time.Now()
		select {
		case <-s.stop:
			timer.Stop()
			return
		case <-timer.C:
			s.lag.overslept(time.Since(sleepStart) - sleep)
			s.lostTime.Store(int64(s.lag.lostTime()))
		}
	}
}

// safeStep keeps the loop alive when a tick panics: the ships go back to their last pose
func (s *Scheduler) safeStep() {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("tick %d aborted: %v", s.Ticks(), r)
			for _, ship := range s.ships {
				if ship.Processor.Phase() != actor.PhaseIdle {
					ship.Processor.Rollback()
				}
			}
		}
	}()

	s.step()
}

// Step runs one tick and reports whether it ran, a paused host skips it
func (s *Scheduler) Step() bool {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	return s.step()
}

func (s *Scheduler) paused() bool {
	host := s.deps.Host
	if host == nil || s.cfg.Headless || host.Headless() {
		return false
	}
	return host.Paused()
}

func (s *Scheduler) step() bool {
	if s.paused() {
		return false
	}

	ships := s.snapshot()
	tick := s.ticks.Load()

	fresh := make([]bool, len(ships))
	for i, ship := range ships {
		fresh[i] = ship.Processor.FirstUpdate()
	}

	completed := true
	for range s.cfg.SubSteps {
		if err := s.substep(ships, fresh); err != nil {
			s.logger.Printf("tick %d: %v", tick, err)
			completed = false
			break
		}
	}

	if completed {
		for i, ship := range ships {
			if fresh[i] {
				ship.Processor.Activate()
			}
		}
	}

	s.dispatch(ships, tick)
	s.ticks.Add(1)

	return true
}

// snapshot copies the registry list. Ships gone since the last tick have their processor destroyed.
func (s *Scheduler) snapshot() []*Ship {
	listed := s.deps.Bodies.ListActiveBodies(s.key)

	ships := make([]*Ship, 0, len(listed))
	active := make(map[*Ship]struct{}, len(listed))
	for _, ship := range listed {
		if ship == nil || ship.Processor == nil || ship.Processor.Removed() {
			continue
		}
		if _, ok := active[ship]; ok {
			continue
		}
		active[ship] = struct{}{}
		ships = append(ships, ship)
	}

	for _, ship := range s.ships {
		if _, ok := active[ship]; ok {
			continue
		}
		ship.Processor.Destroy()
		s.Events.emitRemove(ship)
		s.logger.Printf("ship %v left the world", ship)
	}
	s.ships = ships

	return ships
}

// substep: parallel pre-integration, collision fan-out and fan-in, serial resolution
func (s *Scheduler) substep(ships []*Ship, fresh []bool) error {
	dt := s.cfg.TickSeconds()

	// ========== PRE-INTEGRATION ==========
	ready := make([]bool, len(ships))
	indices := make([]int, len(ships))
	for i := range indices {
		indices[i] = i
	}
	task(s.cfg.Workers, indices, func(i int) {
		if fresh[i] {
			return
		}
		p := ships[i].Processor
		if err := p.PreIntegrate(dt, s.cfg.SubSteps, s.gravity); err != nil {
			s.logger.Printf("ship %v not integrated: %v", ships[i], err)
			return
		}
		if err := p.BeginCollision(); err != nil {
			s.logger.Printf("ship %v: %v", ships[i], err)
			p.Rollback()
			return
		}
		ready[i] = true
	})

	// ========== COLLISION FAN-OUT / FAN-IN ==========
	tasks := s.buildTasks(ships, ready)
	if err := s.fanOut(tasks); err != nil {
		for i, ship := range ships {
			if ready[i] {
				ship.Processor.Rollback()
			}
		}
		return fmt.Errorf("collision batch: %w", err)
	}
	if s.afterFanIn != nil {
		s.afterFanIn(tasks)
	}

	// ========== RESOLUTION, snapshot order ==========
	sets := mergeContacts(tasks, len(ships))
	for _, t := range tasks {
		if !t.Contacts().Empty() {
			s.Events.recordContact(t.owner, t.partner)
		}
	}

	for i, ship := range ships {
		p := ship.Processor
		if fresh[i] {
			if err := p.PublishWithoutIntegration(); err != nil {
				s.logger.Printf("ship %v not published: %v", ship, err)
			}
			continue
		}
		if !ready[i] {
			continue
		}
		if err := p.ResolveCollision(sets[i]...); err != nil {
			s.logger.Printf("ship %v: %v", ship, err)
			p.Rollback()
			continue
		}
		if err := p.PostIntegrate(); err != nil {
			s.logger.Printf("ship %v: %v", ship, err)
		}
	}

	return nil
}

// mergeContacts joins the chunks of each (owner, partner) pair into one set, in task order,
// so the solver sees the same points whatever the block budget.
func mergeContacts(tasks []*CollisionTask, ships int) [][]constraint.ContactSet {
	sets := make([][]constraint.ContactSet, ships)
	slots := make([]map[*Ship]int, ships)
	for _, t := range tasks {
		set := t.Contacts()
		if set.Empty() {
			continue
		}

		i := t.ownerIndex
		if slots[i] == nil {
			slots[i] = make(map[*Ship]int)
		}
		if k, ok := slots[i][t.partner]; ok {
			sets[i][k].Points = append(sets[i][k].Points, set.Points...)
			continue
		}
		slots[i][t.partner] = len(sets[i])
		set.Points = slices.Clone(set.Points)
		sets[i] = append(sets[i], set)
	}
	return sets
}

// buildTasks lists, per owner in snapshot order, its terrain tasks then its tasks against
// ships further in the snapshot. Pairs come from the spatial grid on provisional poses.
func (s *Scheduler) buildTasks(ships []*Ship, ready []bool) []*CollisionTask {
	indices := make([]int, 0, len(ships))
	for i := range ships {
		if ready[i] {
			indices = append(indices, i)
		}
	}

	aabbs := make([]actor.AABB, len(indices))
	s.grid.Clear()
	for k, i := range indices {
		p := ships[i].Processor
		aabbs[k] = p.CollisionShape().LocalAABB().Transformed(p.Provisional())
		s.grid.Insert(k, aabbs[k])
	}
	s.grid.SortCells()

	partners := make(map[int][]int, len(indices))
	for _, pair := range s.grid.FindPairs(aabbs) {
		owner := indices[pair.A]
		partners[owner] = append(partners[owner], indices[pair.B])
	}

	var tasks []*CollisionTask
	for _, i := range indices {
		owner := ships[i]
		chunks := owner.Processor.CollisionShape().Chunks(s.cfg.TaskBlockBudget)

		if s.deps.Terrain != nil {
			for _, chunk := range chunks {
				tasks = append(tasks, s.newTask(i, owner, nil, chunk))
			}
		}
		for _, j := range partners[i] {
			for _, chunk := range chunks {
				tasks = append(tasks, s.newTask(i, owner, ships[j], chunk))
			}
		}
	}

	return tasks
}

// fanOut runs the tasks on the pool and returns once all of them are done
func (s *Scheduler) fanOut(tasks []*CollisionTask) error {
	if len(tasks) == 0 {
		return nil
	}
	jobs := make([]func(), len(tasks))
	for i, t := range tasks {
		jobs[i] = t.Execute
	}
	return s.pool.Invoke(jobs)
}

func (s *Scheduler) newTask(ownerIndex int, owner, partner *Ship, chunk []actor.BlockPos) *CollisionTask {
	t := NewCollisionTask(owner, partner, chunk, s.deps.Terrain)
	t.ownerIndex = ownerIndex
	t.logger = s.logger
	return t
}

func (s *Scheduler) dispatch(ships []*Ship, tick uint64) {
	s.dispatching.Store(true)
	defer s.dispatching.Store(false)

	s.Events.flush()
	s.broadcast(ships, tick)
}

func (s *Scheduler) broadcast(ships []*Ship, tick uint64) {
	if s.deps.Observer == nil || tick%uint64(s.cfg.BroadcastEvery) != 0 {
		return
	}
	for _, ship := range ships {
		s.deps.Observer.Publish(ship, tick, ship.Transform())
	}
}
