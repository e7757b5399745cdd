package subprocess

import (
	"bufio"
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/wagiedev/agentwire/internal/config"
	"github.com/wagiedev/agentwire/internal/errors"
)

const (
	// defaultMaxLineSize is the maximum length of one stdout line.
	defaultMaxLineSize = 1024 * 1024 // 1MB

	// initialLineBuffer is the reader's buffer size; longer lines are
	// assembled from several reads up to the max.
	initialLineBuffer = 64 * 1024

	// rawPrefixSize is how much of an oversized line an error frame keeps.
	rawPrefixSize = 256
)

// scanFrames splits r into lines and decodes each non-blank line as JSON.
//
// A line that fails to decode, or that is longer than maxLineSize, is emitted
// as one error frame and scanning continues. emit returning false stops the
// scan early. The returned error is the reader's terminal error, or nil on
// EOF.
func scanFrames(r io.Reader, maxLineSize int, emit func(config.Frame) bool) error {
	if maxLineSize <= 0 {
		maxLineSize = defaultMaxLineSize
	}

	br := bufio.NewReaderSize(r, min(initialLineBuffer, maxLineSize))

	for {
		line, size, err := readLine(br, maxLineSize)

		switch {
		case size > maxLineSize:
			frame := config.Frame{Err: &errors.JSONDecodeError{
				RawData: string(line),
				Err:     fmt.Errorf("%w: %d bytes, limit %d", errors.ErrLineTooLong, size, maxLineSize),
			}}

			if !emit(frame) {
				return nil
			}

		default:
			if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
				if !emit(decodeLine(trimmed)) {
					return nil
				}
			}
		}

		if stderrors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}
	}
}

// readLine reads through the next newline. It returns the line without the
// newline and its full length. Past maxLineSize the rest of the line is
// consumed but not kept; only a short prefix is returned.
func readLine(br *bufio.Reader, maxLineSize int) ([]byte, int, error) {
	var (
		line []byte
		size int
	)

	for {
		chunk, err := br.ReadSlice('\n')
		if err == nil {
			chunk = chunk[:len(chunk)-1]
		}

		size += len(chunk)

		if size <= maxLineSize {
			line = append(line, chunk...)
		} else {
			if len(line) > rawPrefixSize {
				line = line[:rawPrefixSize]
			}

			if room := rawPrefixSize - len(line); room > 0 {
				line = append(line, chunk[:min(room, len(chunk))]...)
			}
		}

		if !stderrors.Is(err, bufio.ErrBufferFull) {
			return line, size, err
		}
	}
}

func decodeLine(line []byte) config.Frame {
	var v any
	if err := json.Unmarshal(line, &v); err != nil {
		return config.Frame{Err: &errors.JSONDecodeError{RawData: string(line), Err: err}}
	}

	return config.Frame{Value: v}
}
