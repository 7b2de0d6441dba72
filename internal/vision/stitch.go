package vision

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/bowerhall/tourcam/internal/logger"
)

// DefaultBlendStrength is the multiband strength OpenCV's panorama stitcher
// uses when none is set.
const DefaultBlendStrength = 8

type StitchConfig struct {
	ConfidenceThreshold float64
	// BlendStrength is recorded for the run but OpenCV's Go bindings do not
	// expose the multiband blender, so the stitcher default is used.
	BlendStrength  float64
	WaveCorrection bool
	JPEGQuality    int
}

// StitchError carries the OpenCV stitcher status for a failed run.
type StitchError struct {
	Status int
}

func (e *StitchError) Error() string {
	switch e.Status {
	case 1:
		return "stitch failed: need more images"
	case 2:
		return "stitch failed: homography estimation failed"
	case 3:
		return "stitch failed: camera parameter adjustment failed"
	default:
		return fmt.Sprintf("stitch failed: status %d", e.Status)
	}
}

type Stitcher struct {
	cfg StitchConfig
}

func NewStitcher(cfg StitchConfig) *Stitcher {
	if cfg.blendOverridden() {
		logger.Debug("blend strength is not supported by the stitcher bindings, using default",
			"configured", cfg.BlendStrength, "default", DefaultBlendStrength)
	}
	return &Stitcher{cfg: cfg}
}

func (c StitchConfig) blendOverridden() bool {
	return c.BlendStrength != 0 && c.BlendStrength != DefaultBlendStrength
}

// Stitch merges images into one panorama and returns it JPEG encoded.
// The OpenCV call itself cannot be interrupted; ctx is checked before it.
func (s *Stitcher) Stitch(ctx context.Context, images [][]byte) ([]byte, error) {
	mats, err := decodeAll(images)
	if err != nil {
		return nil, fmt.Errorf("stitch: %w", err)
	}
	defer closeAll(mats)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st := gocv.NewStitcher(gocv.StitcherPanorama)
	defer st.Close()
	st.SetPanoConfidenceThresh(s.cfg.ConfidenceThreshold)
	st.SetWaveCorrection(s.cfg.WaveCorrection)

	logger.Debug("stitching", "images", len(mats), "confidence", s.cfg.ConfidenceThreshold, "wave_correction", s.cfg.WaveCorrection)

	pano := gocv.NewMat()
	defer pano.Close()

	if status := st.Stitch(mats, &pano); int(status) != 0 {
		return nil, &StitchError{Status: int(status)}
	}
	if pano.Empty() {
		return nil, ErrEmptyImage
	}

	return encodeJPEG(pano, s.cfg.JPEGQuality)
}
