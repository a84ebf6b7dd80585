// Package cdengine is a collision detection and rigid body core: kinematic
// oriented boxes resolved in time order within each frame, and rigid bodies
// integrated at a fixed rate against static triangle meshes.
//
// A World owns all the state. There are no package level singletons; a
// program may run several worlds side by side, each from a single goroutine.
package cdengine

import (
	"log"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/leonpard21/cdengine/actor"
	"github.com/leonpard21/cdengine/config"
	"github.com/leonpard21/cdengine/octree"
	"github.com/prometheus/client_golang/prometheus"
)

// Options are the optional collaborators of a World.
type Options struct {
	// Logger receives throttled warnings. nil disables them.
	Logger *log.Logger
	// Registerer exports the world metrics. nil disables them.
	Registerer prometheus.Registerer
}

// StepReport summarizes one World.Step.
type StepReport struct {
	Ticks int
	Frame FrameReport
}

type World struct {
	Config config.Physics

	Transforms *actor.Transforms
	Colliders  *Colliders
	Bodies     *Bodies
	Metrics    *Metrics

	Events Events

	diag              *diagnostics
	pendingTransforms []actor.TransformID
}

// NewWorld creates an empty world. An invalid configuration falls back to
// the defaults.
func NewWorld(cfg config.Physics, opts Options) *World {
	if err := cfg.Validate(); err != nil {
		if opts.Logger != nil {
			opts.Logger.Printf("cdengine: %v, using defaults", err)
		}
		cfg = config.Default()
	}

	w := &World{
		Config:     cfg,
		Transforms: actor.NewTransforms(),
		Events:     NewEvents(),
		diag:       newDiagnostics(opts.Logger, cfg.WarnsPerSecond),
	}
	if opts.Registerer != nil {
		w.Metrics = NewMetrics(opts.Registerer)
	}

	w.Bodies = NewBodies(w.Transforms, cfg)
	w.Bodies.events = &w.Events
	w.Bodies.metrics = w.Metrics
	w.Bodies.diag = w.diag

	w.Colliders = NewColliders(w.Transforms)
	w.Colliders.SetMaxIterations(cfg.MaxIterations)
	w.Colliders.SetDriver(w.Bodies.VelocityOf)
	if cfg.GridCellSize > 0 {
		w.Colliders.SetGrid(NewSpatialGrid(cfg.GridCellSize, cfg.GridCells))
	}
	w.Colliders.events = &w.Events
	w.Colliders.metrics = w.Metrics
	w.Colliders.diag = w.diag

	return w
}

// CreateTransform adds a transform at position with the given rotation.
func (w *World) CreateTransform(position mgl64.Vec3, rotation mgl64.Quat) actor.TransformID {
	return w.Transforms.Add(actor.NewTransformAt(position, rotation))
}

// DestroyTransform schedules a transform, its colliders and its body for
// removal at the end of the step.
func (w *World) DestroyTransform(id actor.TransformID) bool {
	if !w.Transforms.Valid(id) {
		return false
	}
	w.Colliders.RemoveByTransform(id)
	w.Bodies.RemoveByTransform(id)
	w.pendingTransforms = append(w.pendingTransforms, id)
	return true
}

// AddStaticMesh registers a built octree as static world geometry.
func (w *World) AddStaticMesh(tree *octree.Octree) (*actor.Collider, bool) {
	id := w.CreateTransform(mgl64.Vec3{}, mgl64.QuatIdent())
	collider, ok := w.Colliders.CreateMeshCollider(id, tree)
	if !ok {
		w.Transforms.Remove(id)
		return nil, false
	}
	return collider, true
}

// Step advances the world by frameTime seconds: the bodies by fixed ticks,
// then the colliders by the whole frame. Removals requested during the step
// are applied at its end, then the events are delivered.
func (w *World) Step(frameTime float64) StepReport {
	start := time.Now()

	var report StepReport
	if frameTime > 0 {
		report.Ticks = w.Bodies.Update(frameTime, w.Colliders)
		report.Frame = w.Colliders.Update(frameTime)
	}

	w.applyRemovals()
	w.Metrics.observeStep(time.Since(start), w.Bodies.Len(), w.Colliders.Len())
	w.Events.flush()

	return report
}

func (w *World) applyRemovals() {
	w.Colliders.ApplyRemovals()
	w.Bodies.ApplyRemovals()
	for _, id := range w.pendingTransforms {
		w.Transforms.Remove(id)
	}
	w.pendingTransforms = w.pendingTransforms[:0]
}

// Shutdown releases every collider, body and transform and drops the
// listeners. The world is empty but usable afterwards.
func (w *World) Shutdown() {
	for _, c := range w.Colliders.All() {
		w.Colliders.Remove(c.ID)
	}
	for _, b := range w.Bodies.All() {
		w.Bodies.Remove(b.ID)
	}
	w.Colliders.ApplyRemovals()
	w.Bodies.ApplyRemovals()

	w.Transforms = actor.NewTransforms()
	w.Colliders.transforms = w.Transforms
	w.Bodies.transforms = w.Transforms
	w.pendingTransforms = w.pendingTransforms[:0]
	w.Events.reset()
}
