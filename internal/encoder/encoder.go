// Package encoder is the boundary with the video-encoding collaborator.
// The pipeline hands off an ordered FrameSequence and receives an output
// location; container internals are not its concern.
package encoder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"videod/pkg/types"
)

// Encoder consumes a decoded frame sequence and produces an output file.
type Encoder interface {
	Encode(ctx context.Context, fs *types.FrameSequence, dir string) (string, error)
}

// segmentHeader is the first line of a raw segment file.
type segmentHeader struct {
	Width     int `json:"width"`
	Height    int `json:"height"`
	FrameRate int `json:"frame_rate"`
	Frames    int `json:"frames"`
}

// RawSink writes frames as a raw RGB segment: one JSON header line followed
// by the concatenated row-major RGB frames. A container muxer downstream
// turns segments into playable files.
type RawSink struct{}

// NewRawSink returns the default frame sink.
func NewRawSink() *RawSink { return &RawSink{} }

func (*RawSink) Encode(ctx context.Context, fs *types.FrameSequence, dir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "video.rgbseq")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create segment: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriterSize(f, 1<<20)
	hdr, err := json.Marshal(segmentHeader{
		Width:     fs.Width,
		Height:    fs.Height,
		FrameRate: fs.FrameRate,
		Frames:    fs.FrameCount(),
	})
	if err != nil {
		return "", err
	}
	if _, err := w.Write(append(hdr, '\n')); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	for i, frame := range fs.Frames {
		if _, err := w.Write(frame); err != nil {
			return "", fmt.Errorf("write frame %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("flush segment: %w", err)
	}
	return path, nil
}
