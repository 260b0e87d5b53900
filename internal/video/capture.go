// Package video adapts OpenCV video decoding to the matcher's
// FrameSource interface.
package video

import (
	"errors"
	"fmt"
	"io"

	"gocv.io/x/gocv"
)

// FileSource decodes frames sequentially from a video file. It
// implements recognition.FrameSource. Frames are re-encoded as JPEG
// for the embedding service.
type FileSource struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	closed  bool
}

// OpenFile opens a video file for sequential decoding. The caller
// must Close the source; MatchVideo does so on every exit path.
func OpenFile(path string) (*FileSource, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening video %s: %w", path, err)
	}
	return &FileSource{
		capture: capture,
		mat:     gocv.NewMat(),
	}, nil
}

// Next decodes the next frame. Returns io.EOF at end of stream.
func (s *FileSource) Next() ([]byte, error) {
	if s.closed {
		return nil, errors.New("video: source closed")
	}
	if ok := s.capture.Read(&s.mat); !ok {
		return nil, io.EOF
	}
	if s.mat.Empty() {
		return nil, io.EOF
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, s.mat)
	if err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	defer buf.Close()

	// The native buffer is freed on Close; hand out a copy.
	frame := make([]byte, len(buf.GetBytes()))
	copy(frame, buf.GetBytes())
	return frame, nil
}

// Close releases the decoder. Safe to call more than once.
func (s *FileSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.mat.Close(); err != nil {
		errs = append(errs, fmt.Errorf("releasing frame buffer: %w", err))
	}
	if err := s.capture.Close(); err != nil {
		errs = append(errs, fmt.Errorf("releasing capture: %w", err))
	}
	return errors.Join(errs...)
}
