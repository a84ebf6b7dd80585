package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/joho/godotenv"
	"github.com/leonpard21/cdengine"
	"github.com/leonpard21/cdengine/actor"
	"github.com/leonpard21/cdengine/config"
	"github.com/leonpard21/cdengine/octree"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	frameTime = 1.0 / 60.0
	frames    = 300
)

var (
	projectileTag = actor.TypeHash("Projectile")
	targetTag     = actor.TypeHash("Target")
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables only")
	}

	cfg := config.FromEnv()
	log.Printf("Config: gravity %v, %.0f Hz, %d sub-steps, octree level %d",
		cfg.Gravity, 1/cfg.FixedTimeStep, cfg.MaxSubsteps, cfg.OctreeLevel)

	reg := prometheus.NewRegistry()
	world := cdengine.NewWorld(cfg, cdengine.Options{
		Logger:     log.Default(),
		Registerer: reg,
	})

	floor, err := loadFloor(cfg.OctreeLevel)
	if err != nil {
		log.Fatalf("Floor: %v", err)
	}
	if _, ok := world.AddStaticMesh(floor); !ok {
		log.Fatal("Floor: rejected by the world")
	}

	setupScene(world)

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, reg)
		runForever(world)
		return
	}

	for i := 0; i < frames; i++ {
		world.Step(frameTime)
	}
	for _, body := range world.Bodies.All() {
		log.Printf("Body %d at rest at %v", body.ID, body.Position)
	}
}

// loadFloor builds a 20x20 floor, writes it to disk and reads it back.
func loadFloor(level uint32) (*octree.Octree, error) {
	mesh := &octree.Mesh{
		Vertices: []mgl64.Vec3{{-10, 0, -10}, {-10, 0, 10}, {10, 0, 10}, {10, 0, -10}},
		Indices:  []uint32{0, 1, 2, 0, 2, 3},
	}

	tree, err := octree.Build(level, mgl64.Vec3{-10, -10, -10}, mgl64.Vec3{10, 10, 10}, mesh)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(os.TempDir(), "cdengine-floor.oct")
	if err := tree.SaveFile(path); err != nil {
		return nil, err
	}
	defer os.Remove(path)

	return octree.LoadFile(path, mesh)
}

func setupScene(world *cdengine.World) {
	// crates falling on the floor
	for i := 0; i < 3; i++ {
		id := world.CreateTransform(mgl64.Vec3{float64(i)*3 - 3, 4 + float64(i), 0}, mgl64.QuatRotate(0.3*float64(i), mgl64.Vec3{0, 1, 0}))
		world.Colliders.CreateOBBCollider(id, mgl64.Vec3{1, 1, 1}, mgl64.Vec3{})
		body, _ := world.Bodies.AddRigidBody(id)
		body.AngularVelocity = mgl64.Vec3{0, 1, 0}
	}

	target, _ := world.Colliders.CreateOBBCollider(
		world.CreateTransform(mgl64.Vec3{0, 2, 8}, mgl64.QuatIdent()), mgl64.Vec3{2, 2, 0.5}, mgl64.Vec3{})
	target.Tag = targetTag

	projectile, _ := world.Colliders.CreateOBBCollider(
		world.CreateTransform(mgl64.Vec3{0, 2, -8}, mgl64.QuatIdent()), mgl64.Vec3{0.2, 0.2, 0.2}, mgl64.Vec3{})
	projectile.Tag = projectileTag
	projectile.Velocity = mgl64.Vec3{0, 0, 20}

	world.Colliders.OnTag(projectileTag, func(self *actor.Collider, info actor.CollisionInfo) bool {
		if other := world.Colliders.Get(info.B); other != nil && other.Tag == targetTag {
			log.Printf("Projectile %d hit target %d at t=%.3f", self.ID, other.ID, info.Time)
			world.DestroyTransform(self.Transform)
			return false
		}
		return true
	})

	world.Events.Subscribe(cdengine.NO_SOLUTION, func(e cdengine.Event) {
		ns := e.(cdengine.NoSolutionEvent)
		log.Printf("Body %d rolled back after %d sub-steps", ns.Body, ns.Substeps)
	})
	world.Events.Subscribe(cdengine.SCHEDULER_CAP, func(e cdengine.Event) {
		sc := e.(cdengine.SchedulerCapEvent)
		log.Printf("Scheduler cap reached, %.4fs deferred", sc.Deferred)
	})
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	log.Printf("Metrics on http://%s/metrics", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Printf("Metrics server stopped: %v", err)
	}
}

// runForever steps the world at frame rate until SIGINT or SIGTERM.
func runForever(world *cdengine.World) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	frameNanos := frameTime * float64(time.Second)
	ticker := time.NewTicker(time.Duration(frameNanos))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-quit:
			log.Println("Shutting down")
			world.Shutdown()
			return
		case now := <-ticker.C:
			world.Step(now.Sub(last).Seconds())
			last = now
		}
	}
}
