package stream

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultMaxEventBytes bounds a single SSE event.
const DefaultMaxEventBytes = 4 << 20

// Reader frames an SSE body into data payloads. Only data fields are used;
// comments and the event, id and retry fields are skipped.
type Reader struct {
	br   *bufio.Reader
	max  int
	line []byte
}

// NewReader wraps r. maxEventBytes bounds the longest accepted line and the
// joined data of one event.
func NewReader(r io.Reader, maxEventBytes int) *Reader {
	if maxEventBytes <= 0 {
		maxEventBytes = DefaultMaxEventBytes
	}
	size := min(64*1024, maxEventBytes)
	return &Reader{br: bufio.NewReaderSize(r, size), max: maxEventBytes}
}

// Next blocks until the next complete event and returns its data. It returns
// io.EOF when the body ends; a trailing event without a blank line is dropped.
// An event over the size limit is skipped up to its terminating blank line and
// reported as a *ParseError; the reader stays usable.
func (r *Reader) Next() (string, error) {
	var (
		data     strings.Builder
		hasData  bool
		oversize bool
	)
	for {
		line, tooLong, err := r.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", fmt.Errorf("read event stream: %w", err)
		}
		if tooLong {
			oversize = true
			continue
		}
		if len(line) == 0 {
			if oversize {
				return "", &ParseError{Message: fmt.Sprintf("event exceeds %d bytes", r.max)}
			}
			if !hasData {
				continue
			}
			return data.String(), nil
		}
		if oversize || line[0] == ':' {
			continue
		}
		field, value, found := bytes.Cut(line, []byte(":"))
		if found && len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}
		if string(field) != "data" {
			continue
		}
		if data.Len()+len(value)+1 > r.max {
			oversize = true
			data.Reset()
			continue
		}
		if hasData {
			data.WriteByte('\n')
		}
		data.Write(value)
		hasData = true
	}
}

// readLine returns the next line without its terminator. A line longer than
// the limit is consumed through its newline and reported with tooLong set.
// A final line without a newline is reported as io.EOF.
func (r *Reader) readLine() ([]byte, bool, error) {
	r.line = r.line[:0]
	tooLong := false
	for {
		chunk, err := r.br.ReadSlice('\n')
		if !tooLong {
			r.line = append(r.line, chunk...)
			if len(bytes.TrimRight(r.line, "\r\n")) > r.max {
				tooLong = true
				r.line = r.line[:0]
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		break
	}
	if tooLong {
		return nil, true, nil
	}
	line := bytes.TrimSuffix(r.line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return line, false, nil
}
