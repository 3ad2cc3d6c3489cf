package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/akmonengine/hull"
	"github.com/akmonengine/hull/actor"
	"github.com/akmonengine/hull/constraint"
	"github.com/akmonengine/hull/provider"
	"github.com/go-gl/mathgl/mgl64"
)

const world hull.WorldKey = "overworld"

// newRaft builds a 3x3 deck with an engine at the stern and an ether compressor in the middle.
// Block positions are local to the ship, so each raft has its own compressor index.
func newRaft(name string, position mgl64.Vec3) (*hull.Ship, error) {
	index := provider.NewIndex()
	blocks := make(map[actor.BlockPos]actor.Block)
	for x := 0; x < 3; x++ {
		for z := 0; z < 3; z++ {
			blocks[actor.BlockPos{X: x, Y: 0, Z: z}] = actor.Block{State: actor.BlockState{Kind: "planks"}, Mass: 400}
		}
	}

	engine := actor.BlockPos{X: 1, Y: 1, Z: 2}
	blocks[engine] = actor.Block{
		State: actor.BlockState{Kind: "engine", Facing: actor.FacingSouth, Powered: true},
		Force: provider.Engine{},
	}

	compressor := actor.BlockPos{X: 1, Y: 1, Z: 1}
	blocks[compressor] = actor.Block{
		State: actor.BlockState{Kind: "ether_compressor"},
		Force: provider.EtherCompressor{MaxThrust: 60000, Index: index, Ceiling: 256},
	}
	if err := index.Assemble(compressor); err != nil {
		return nil, err
	}
	if err := index.SetThrustGoal(compressor, 0.9); err != nil {
		return nil, err
	}

	shape, err := actor.NewVoxelShape(blocks)
	if err != nil {
		return nil, err
	}

	return hull.NewShip(name, shape, position, mgl64.QuatIdent(), constraint.Material{
		Restitution:     0.1,
		StaticFriction:  0.6,
		DynamicFriction: 0.4,
	})
}

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	duration := flag.Duration("duration", 3*time.Second, "simulated wall time")
	flag.Parse()

	logger := log.New(os.Stderr, "flotilla ", log.LstdFlags)

	cfg := hull.DefaultConfig()
	if *configPath != "" {
		loaded, err := hull.LoadConfig(*configPath)
		if err != nil {
			logger.Fatal(err)
		}
		cfg = loaded
	}
	cfg.Headless = true

	ships := hull.NewShipSet()
	for i, position := range []mgl64.Vec3{{0, 4, 0}, {12, 6, 0}} {
		ship, err := newRaft(fmt.Sprintf("raft-%d", i), position)
		if err != nil {
			logger.Fatal(err)
		}
		if err := ships.Add(world, ship); err != nil {
			logger.Fatal(err)
		}
	}

	registry, err := hull.NewRegistry(cfg, func(key hull.WorldKey) hull.Deps {
		return hull.Deps{
			Bodies:  ships,
			Terrain: hull.FlatTerrain{Level: 0, Material: constraint.Material{StaticFriction: 0.8, DynamicFriction: 0.6}},
			Observer: hull.ObserverFunc(func(ship *hull.Ship, tick uint64, transform actor.RigidTransform) {
				if tick%20 == 0 {
					fmt.Printf("tick %4d %-8s position %v\n", tick, ship.Name, transform.Position())
				}
			}),
			Logger: logger,
		}
	})
	if err != nil {
		logger.Fatal(err)
	}
	defer registry.Close()

	scheduler, err := registry.Create(world)
	if err != nil {
		logger.Fatal(err)
	}
	scheduler.Events.Subscribe(hull.COLLISION_ENTER, func(event hull.Event) {
		e := event.(hull.CollisionEnterEvent)
		if e.ShipB == nil {
			fmt.Printf("%v touched the ground\n", e.ShipA)
			return
		}
		fmt.Printf("%v touched %v\n", e.ShipA, e.ShipB)
	})

	time.Sleep(*duration)

	if err := registry.Destroy(world); err != nil {
		logger.Fatal(err)
	}
	fmt.Printf("%d ticks, %v behind\n", scheduler.Ticks(), scheduler.LostTime())
}
