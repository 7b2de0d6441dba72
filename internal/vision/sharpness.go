package vision

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/bowerhall/tourcam/internal/logger"
)

// Sharpness scores focus by the variance of the Laplacian.
type Sharpness struct{}

func NewSharpness() *Sharpness {
	return &Sharpness{}
}

// IsSharp reports whether the Laplacian variance of image exceeds threshold.
// Undecodable images are never sharp.
func (s *Sharpness) IsSharp(image []byte, threshold float64) bool {
	v, err := LaplacianVariance(image)
	if err != nil {
		logger.Debug("sharpness check failed", "error", err)
		return false
	}
	logger.Debug("sharpness", "variance", v, "threshold", threshold)
	return v > threshold
}

func LaplacianVariance(image []byte) (float64, error) {
	gray, err := decode(image, gocv.IMReadGrayScale)
	if err != nil {
		return 0, fmt.Errorf("sharpness: %w", err)
	}
	defer gray.Close()

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(lap, &mean, &stddev)

	sd := stddev.GetDoubleAt(0, 0)
	return sd * sd, nil
}
