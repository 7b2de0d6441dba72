package assembly

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/bowerhall/tourcam/internal/capture"
	"github.com/bowerhall/tourcam/internal/logger"
)

var (
	ErrNoImages           = errors.New("shot set has no images")
	ErrInsufficientMemory = errors.New("insufficient free memory to assemble")
)

type Stitcher interface {
	Stitch(ctx context.Context, images [][]byte) ([]byte, error)
}

// MemoryFunc reports available system memory in bytes.
type MemoryFunc func(ctx context.Context) (uint64, error)

type Config struct {
	MinFreeBytes uint64 // 0 disables the preflight
	ContentType  string
}

// Orchestrator turns a complete shot set into one panorama artifact.
// Runs are serialized; the stitcher is CPU and memory heavy.
type Orchestrator struct {
	stitcher Stitcher
	cfg      Config
	memFree  MemoryFunc

	mu          sync.Mutex
	busy        atomic.Bool
	invocations atomic.Int64
}

func New(stitcher Stitcher, cfg Config) *Orchestrator {
	if cfg.ContentType == "" {
		cfg.ContentType = "image/jpeg"
	}
	return &Orchestrator{
		stitcher: stitcher,
		cfg:      cfg,
		memFree:  availableMemory,
	}
}

// SetMemoryFunc replaces the system memory lookup.
func (o *Orchestrator) SetMemoryFunc(p MemoryFunc) {
	o.memFree = p
}

func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

// Invocations counts Assemble calls, including failed ones.
func (o *Orchestrator) Invocations() int64 {
	return o.invocations.Load()
}

func (o *Orchestrator) Assemble(ctx context.Context, set capture.ShotSet) (capture.Artifact, error) {
	o.invocations.Add(1)

	o.mu.Lock()
	defer o.mu.Unlock()

	o.busy.Store(true)
	defer o.busy.Store(false)

	if set.Len() == 0 {
		return capture.Artifact{}, ErrNoImages
	}

	if err := o.preflight(ctx); err != nil {
		return capture.Artifact{}, err
	}

	start := time.Now()
	logger.Info("assembly started", "listing", set.ListingID, "shots", set.Len())

	image, err := o.stitcher.Stitch(ctx, set.Images())
	if err != nil {
		logger.Error("assembly failed", "listing", set.ListingID, "shots", set.Len(), "error", err)
		return capture.Artifact{}, fmt.Errorf("assemble %d shots: %w", set.Len(), err)
	}

	artifact := capture.Artifact{
		ID:          uuid.New().String(),
		ListingID:   set.ListingID,
		Image:       image,
		ContentType: o.cfg.ContentType,
		ShotCount:   set.Len(),
		AssembledAt: time.Now(),
	}

	logger.Info("assembly finished",
		"listing", set.ListingID,
		"artifact", artifact.ID,
		"bytes", len(image),
		"duration", time.Since(start).Round(time.Millisecond))

	return artifact, nil
}

func (o *Orchestrator) preflight(ctx context.Context) error {
	if o.cfg.MinFreeBytes == 0 || o.memFree == nil {
		return nil
	}

	avail, err := o.memFree(ctx)
	if err != nil {
		logger.Warn("memory lookup failed, assembling anyway", "error", err)
		return nil
	}

	if avail < o.cfg.MinFreeBytes {
		return fmt.Errorf("%w: %d MB available, %d MB required",
			ErrInsufficientMemory, avail>>20, o.cfg.MinFreeBytes>>20)
	}
	return nil
}

func availableMemory(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}
