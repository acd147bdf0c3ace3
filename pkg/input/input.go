// Package input implements the LineSource stage (spec §2): framing raw
// bytes off an io.Reader into (line_no, bytes) pairs by a delimiter byte.
//
// Grounded on the original Rust implementation's input/reader.rs LineReader
// (a bufio-style delimiter reader that also tracks a running line number),
// ported to Go's bufio.Reader.ReadBytes idiom instead of read_until.
package input

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// LineSource frames an underlying reader by a delimiter byte, handing back
// one line (delimiter stripped) at a time along with its 1-based line
// number.
type LineSource struct {
	r      *bufio.Reader
	delim  byte
	lineNo int
}

// New wraps r, splitting on '\n'.
func New(r io.Reader) *LineSource {
	return WithDelimiter(r, '\n')
}

// WithDelimiter wraps r, splitting on delim instead of the default '\n'.
func WithDelimiter(r io.Reader, delim byte) *LineSource {
	return &LineSource{r: bufio.NewReader(r), delim: delim}
}

// Next returns the next line, or ok=false at EOF. The trailing delimiter
// is stripped; a final line with no trailing delimiter is still returned.
func (s *LineSource) Next() (lineNo int, line []byte, ok bool, err error) {
	buf, err := s.r.ReadBytes(s.delim)
	if len(buf) == 0 && err == io.EOF {
		return 0, nil, false, nil
	}
	if err != nil && err != io.EOF {
		return 0, nil, false, errors.Wrap(err, "input: reader failed")
	}
	if n := len(buf); n > 0 && buf[n-1] == s.delim {
		buf = buf[:n-1]
	}
	s.lineNo++
	return s.lineNo, buf, true, nil
}
