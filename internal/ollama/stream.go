// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"
)

// StreamCallback is called for each frame received during streaming.
type StreamCallback func(chunk StreamChunk)

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader parses a newline-delimited JSON body frame by frame.
//
// A frame is parsed only once its terminating '\n' has arrived, so a frame
// split across network reads is buffered until complete. Blank lines are
// ignored. Lines that fail to parse are dropped and counted, as is a
// trailing line without a newline at end of stream.
type StreamReader struct {
	reader *bufio.Reader
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	accumulator strings.Builder
	frames      int
	contentSeen int
	dropped     int
	model       string
	final       *StreamChunk
	firstToken  time.Time
	startTime   time.Time
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{
		reader:    bufio.NewReader(r),
		startTime: time.Now(),
	}
}

// Process reads the stream and calls the callback for each parsed frame, in
// arrival order. It returns nil at end of stream, including after a done
// frame, or the error that interrupted reading.
func (s *StreamReader) Process(ctx context.Context, callback StreamCallback) error {
	for {
		if err := ctx.Err(); err != nil {
			return transportError(err)
		}

		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(bytes.TrimSpace(line)) > 0 {
					s.dropped++
				}
				return nil
			}
			return transportError(err)
		}

		chunk, ok := s.parseLine(line)
		if ok {
			callback(chunk)
		}
	}
}

// parseLine turns one complete line into a chunk. ok is false for blank and
// malformed lines.
func (s *StreamReader) parseLine(line []byte) (StreamChunk, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return StreamChunk{}, false
	}

	var frame ChatResponse
	if err := json.Unmarshal(line, &frame); err != nil {
		s.dropped++
		return StreamChunk{}, false
	}
	s.frames++

	if frame.Model != "" {
		s.model = frame.Model
	}

	content := frame.Content()
	if content != "" {
		if s.contentSeen == 0 {
			s.firstToken = time.Now()
		}
		s.accumulator.WriteString(content)
		s.contentSeen++
	}

	chunk := StreamChunk{
		Content:    content,
		Done:       frame.Done,
		DoneReason: frame.DoneReason,
		Model:      s.model,
	}

	// On completion, extract statistics
	if frame.Done {
		chunk.TotalDuration = time.Duration(frame.TotalDuration)
		chunk.LoadDuration = time.Duration(frame.LoadDuration)
		chunk.PromptEvalDuration = time.Duration(frame.PromptEvalDuration)
		chunk.EvalDuration = time.Duration(frame.EvalDuration)
		chunk.PromptTokens = frame.PromptEvalCount
		chunk.CompletionTokens = frame.EvalCount
		final := chunk
		s.final = &final
	}

	return chunk, true
}

// Accumulated returns all content received so far.
func (s *StreamReader) Accumulated() string {
	return s.accumulator.String()
}

// ContentFrames returns how many frames carried non-empty content.
func (s *StreamReader) ContentFrames() int {
	return s.contentSeen
}

// Frames returns how many frames parsed successfully.
func (s *StreamReader) Frames() int {
	return s.frames
}

// Dropped returns how many non-blank lines could not be parsed.
func (s *StreamReader) Dropped() int {
	return s.dropped
}

// Model returns the model name reported by the stream.
func (s *StreamReader) Model() string {
	return s.model
}

// Final returns the last done frame, or nil if none arrived.
func (s *StreamReader) Final() *StreamChunk {
	return s.final
}

// TTFT returns the time from reader creation to the first content frame.
func (s *StreamReader) TTFT() time.Duration {
	if s.firstToken.IsZero() {
		return 0
	}
	return s.firstToken.Sub(s.startTime)
}
