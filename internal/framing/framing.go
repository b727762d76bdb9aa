// Package framing splits a raw HTTP/1.0 response into header and body and
// pulls the server timestamp out of the Date header.
package framing

import (
	"bytes"
	"errors"
	"time"
)

// ErrNoSeparator means the response never reached the blank line that ends the
// header block, so there is no body to parse.
var ErrNoSeparator = errors.New("framing: header/body separator not found")

var (
	separator  = []byte("\r\n\r\n")
	dateHeader = []byte("\r\nDate:")
)

// dateLayout covers "<weekday>, <day> <month> <year> <hh>:<mm>:<ss>". The zone
// token that follows is ignored.
const dateLayout = "Mon, 2 Jan 2006 15:04:05"

// datePrefixLen is len("Date: ").
const datePrefixLen = 6

// Frame is a response split at the first blank line.
type Frame struct {
	Header       []byte
	Body         []byte
	Timestamp    time.Time // UTC as reported by the server
	HasTimestamp bool
}

// Parse frames raw[:n]. The body starts exactly four bytes after the first
// CRLFCRLF. A missing or malformed Date header leaves HasTimestamp false and is
// not an error.
func Parse(raw []byte, n int) (Frame, error) {
	if n < 0 || n > len(raw) {
		n = len(raw)
	}
	buf := raw[:n]

	i := bytes.Index(buf, separator)
	if i < 0 {
		return Frame{}, ErrNoSeparator
	}
	f := Frame{
		Header: buf[:i],
		Body:   buf[i+len(separator):],
	}
	f.Timestamp, f.HasTimestamp = parseDate(f.Header)
	return f, nil
}

// parseDate finds the Date line in the header block. Matching on a leading CRLF
// keeps the status line out of the search.
func parseDate(header []byte) (time.Time, bool) {
	j := bytes.Index(header, dateHeader)
	if j < 0 {
		return time.Time{}, false
	}
	line := header[j+2:]
	if end := bytes.Index(line, []byte("\r\n")); end >= 0 {
		line = line[:end]
	}
	if len(line) <= datePrefixLen {
		return time.Time{}, false
	}
	value := line[datePrefixLen:]

	// Keep the first five fields: weekday, day, month, year, clock.
	fields := bytes.Fields(value)
	if len(fields) < 5 {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(dateLayout, string(bytes.Join(fields[:5], []byte(" "))), time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// LocalTime shifts a server timestamp into the display zone. loc is expected to
// be a fixed offset, so there is no DST adjustment.
func LocalTime(t time.Time, loc *time.Location) time.Time {
	return t.In(loc)
}
