package recognition

import (
	"context"
	"errors"
	"io"
	"log"
)

// DefaultStride is the frame-skip interval for video sampling: only
// every stride-th frame is passed to the detector.
const DefaultStride = 20

// FrameSource is a sequential, forward-only stream of encoded frames.
// Next returns io.EOF at end of stream. Close releases the underlying
// decoding resource and must be safe to call after an error.
type FrameSource interface {
	Next() ([]byte, error)
	Close() error
}

// MatchVideo drives the matcher across a decimated frame sequence and
// unions the per-frame present sets. Frames are counted from 1; only
// those where count % stride == 0 reach the detector, the rest are
// decoded and dropped.
//
// Matching is best effort: a frame decode or detection failure stops
// consumption but the partial present set is still returned with a
// nil error. Cancellation is checked between frames and returns the
// partial set along with the context error. The source is closed on
// every exit path.
func MatchVideo(ctx context.Context, src FrameSource, det Detector, set *CourseSet, stride int, threshold float64) (PresentSet, error) {
	if stride <= 0 {
		stride = DefaultStride
	}
	present := make(PresentSet)
	defer func() {
		if err := src.Close(); err != nil {
			log.Printf("video: closing frame source: %v", err)
		}
	}()

	for i := 1; ; i++ {
		if err := ctx.Err(); err != nil {
			return present, err
		}

		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			return present, nil
		}
		if err != nil {
			log.Printf("video: frame %d failed to decode, returning partial result: %v", i, err)
			return present, nil
		}

		if i%stride != 0 {
			continue
		}

		embeddings, err := det.DetectEmbeddings(ctx, frame)
		if err != nil {
			log.Printf("video: detection failed at frame %d, returning partial result: %v", i, err)
			return present, nil
		}
		present.Union(Match(embeddings, set, threshold))
	}
}
