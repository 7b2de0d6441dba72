package device

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFrames(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestDirCameraServesInOrder(t *testing.T) {
	dir := writeFrames(t, "b.jpg", "a.jpg", "notes.txt", "c.png")

	cam, err := NewDirCamera(DirConfig{Dir: dir})
	if err != nil {
		t.Fatalf("new camera: %v", err)
	}
	if cam.Frames() != 3 {
		t.Fatalf("expected 3 frames, got %d", cam.Frames())
	}

	for _, want := range []string{"a.jpg", "b.jpg", "c.png"} {
		frame, err := cam.Capture(context.Background())
		if err != nil {
			t.Fatalf("capture: %v", err)
		}
		if string(frame.Data) != want {
			t.Errorf("expected %s, got %s", want, frame.Data)
		}
		if frame.Brackets != nil {
			t.Errorf("expected no brackets for single exposures")
		}
	}

	if _, err := cam.Capture(context.Background()); !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
}

func TestDirCameraLoops(t *testing.T) {
	dir := writeFrames(t, "a.jpg")

	cam, err := NewDirCamera(DirConfig{Dir: dir, Loop: true})
	if err != nil {
		t.Fatalf("new camera: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := cam.Capture(context.Background()); err != nil {
			t.Fatalf("capture %d: %v", i, err)
		}
	}
}

func TestDirCameraBrackets(t *testing.T) {
	dir := writeFrames(t, "s01_b0.jpg", "s01_b1.jpg", "s01_b2.jpg", "s02_b0.jpg", "s02_b1.jpg", "s02_b2.jpg")

	cam, err := NewDirCamera(DirConfig{Dir: dir, BracketSize: 3})
	if err != nil {
		t.Fatalf("new camera: %v", err)
	}

	frame, err := cam.Capture(context.Background())
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if len(frame.Brackets) != 3 {
		t.Fatalf("expected 3 brackets, got %d", len(frame.Brackets))
	}
	if string(frame.Data) != "s01_b1.jpg" {
		t.Errorf("expected middle exposure as data, got %s", frame.Data)
	}
}

func TestDirCameraRejectsUnevenBrackets(t *testing.T) {
	dir := writeFrames(t, "a.jpg", "b.jpg")

	if _, err := NewDirCamera(DirConfig{Dir: dir, BracketSize: 3}); err == nil {
		t.Error("expected error for uneven bracket grouping")
	}
}

func TestDirCameraEmptyDir(t *testing.T) {
	if _, err := NewDirCamera(DirConfig{Dir: t.TempDir()}); err == nil {
		t.Error("expected error for empty directory")
	}
}

func TestDirCameraHonorsCancel(t *testing.T) {
	dir := writeFrames(t, "a.jpg")

	cam, err := NewDirCamera(DirConfig{Dir: dir, Delay: time.Hour})
	if err != nil {
		t.Fatalf("new camera: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := cam.Capture(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
