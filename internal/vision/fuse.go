package vision

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// MertensFuser merges exposure brackets into one frame with Mertens exposure
// fusion. No camera response calibration is needed.
type MertensFuser struct {
	quality int
}

func NewMertensFuser(jpegQuality int) *MertensFuser {
	return &MertensFuser{quality: jpegQuality}
}

func (f *MertensFuser) Fuse(brackets [][]byte) ([]byte, error) {
	if len(brackets) == 0 {
		return nil, errors.New("fuse: no brackets")
	}

	mats, err := decodeAll(brackets)
	if err != nil {
		return nil, fmt.Errorf("fuse: %w", err)
	}
	defer closeAll(mats)

	merge := gocv.NewMergeMertens()
	defer merge.Close()

	fused := gocv.NewMat()
	defer fused.Close()
	merge.Process(mats, &fused)
	if fused.Empty() {
		return nil, errors.New("fuse: merge produced no image")
	}

	// Mertens output is float in [0,1]
	out := gocv.NewMat()
	defer out.Close()
	fused.ConvertToWithParams(&out, gocv.MatTypeCV8UC3, 255, 0)

	return encodeJPEG(out, f.quality)
}
