package vision

import (
	"bytes"
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

var ErrEmptyImage = errors.New("image decoded to an empty matrix")

func decode(data []byte, flags gocv.IMReadFlag) (gocv.Mat, error) {
	m, err := gocv.IMDecode(data, flags)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("decode image: %w", err)
	}
	if m.Empty() {
		m.Close()
		return gocv.Mat{}, ErrEmptyImage
	}
	return m, nil
}

func decodeAll(images [][]byte) ([]gocv.Mat, error) {
	mats := make([]gocv.Mat, 0, len(images))
	for i, data := range images {
		m, err := decode(data, gocv.IMReadColor)
		if err != nil {
			closeAll(mats)
			return nil, fmt.Errorf("image %d: %w", i, err)
		}
		mats = append(mats, m)
	}
	return mats, nil
}

func closeAll(mats []gocv.Mat) {
	for _, m := range mats {
		m.Close()
	}
}

func encodeJPEG(m gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, m, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// buf is backed by C memory freed on Close
	return bytes.Clone(buf.GetBytes()), nil
}
