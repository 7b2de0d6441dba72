package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bowerhall/tourcam/internal/capture"
	"github.com/bowerhall/tourcam/internal/logger"
)

var ErrExhausted = errors.New("no frames left in capture directory")

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

type DirConfig struct {
	Dir         string
	BracketSize int           // files per frame; 3 gives -1/0/+1 exposure brackets
	Delay       time.Duration // simulated shutter latency
	Loop        bool
}

// DirCamera serves frames from image files in a directory, in name order.
type DirCamera struct {
	cfg    DirConfig
	groups [][]string

	mu   sync.Mutex
	next int
}

func NewDirCamera(cfg DirConfig) (*DirCamera, error) {
	if cfg.BracketSize <= 0 {
		cfg.BracketSize = 1
	}

	entries, err := os.ReadDir(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("read capture dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(cfg.Dir, e.Name()))
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no images in %s", cfg.Dir)
	}
	if len(files)%cfg.BracketSize != 0 {
		return nil, fmt.Errorf("%d images in %s do not split into brackets of %d", len(files), cfg.Dir, cfg.BracketSize)
	}

	var groups [][]string
	for i := 0; i < len(files); i += cfg.BracketSize {
		groups = append(groups, files[i:i+cfg.BracketSize])
	}

	logger.Info("capture directory loaded", "dir", cfg.Dir, "frames", len(groups), "bracket", cfg.BracketSize)

	return &DirCamera{cfg: cfg, groups: groups}, nil
}

func (c *DirCamera) Frames() int {
	return len(c.groups)
}

func (c *DirCamera) Capture(ctx context.Context) (capture.Frame, error) {
	c.mu.Lock()
	if c.next >= len(c.groups) {
		if !c.cfg.Loop {
			c.mu.Unlock()
			return capture.Frame{}, ErrExhausted
		}
		c.next = 0
	}
	group := c.groups[c.next]
	c.next++
	c.mu.Unlock()

	if c.cfg.Delay > 0 {
		timer := time.NewTimer(c.cfg.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return capture.Frame{}, ctx.Err()
		case <-timer.C:
		}
	}

	brackets := make([][]byte, 0, len(group))
	for _, path := range group {
		data, err := os.ReadFile(path)
		if err != nil {
			return capture.Frame{}, fmt.Errorf("read frame: %w", err)
		}
		brackets = append(brackets, data)
	}

	frame := capture.Frame{
		Data:       brackets[len(brackets)/2],
		CapturedAt: time.Now(),
	}
	if len(brackets) > 1 {
		frame.Brackets = brackets
	}
	return frame, nil
}
