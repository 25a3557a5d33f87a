package persist

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

const tailChunk = 4096

// recoverTail drops a torn trailing fragment (bytes after the final newline,
// left behind by a crash mid-write) and returns the last complete line
// without its newline. Complete data is never rewritten.
func recoverTail(f *os.File) ([]byte, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := st.Size()
	if size == 0 {
		return nil, nil
	}

	var (
		buf []byte
		off = size
	)
	for off > 0 {
		n := int64(tailChunk)
		if n > off {
			n = off
		}
		off -= n
		chunk := make([]byte, n)
		if _, err := f.ReadAt(chunk, off); err != nil && err != io.EOF {
			return nil, fmt.Errorf("read tail: %w", err)
		}
		buf = append(chunk, buf...)

		last := bytes.LastIndexByte(buf, '\n')
		if last < 0 {
			continue
		}
		if bytes.LastIndexByte(buf[:last], '\n') >= 0 {
			break
		}
	}

	last := bytes.LastIndexByte(buf, '\n')
	end := off + int64(last) + 1
	if last < 0 {
		end = 0
	}
	if end < size {
		if err := f.Truncate(end); err != nil {
			return nil, fmt.Errorf("truncate torn tail: %w", err)
		}
	}
	if last < 0 {
		return nil, nil
	}
	prev := bytes.LastIndexByte(buf[:last], '\n')
	line := make([]byte, last-prev-1)
	copy(line, buf[prev+1:last])
	return line, nil
}

// firstLine returns up to max bytes of the first line of f and whether its
// newline was seen.
func firstLine(f *os.File, max int) ([]byte, bool, error) {
	buf := make([]byte, max)
	n, err := f.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return nil, false, err
	}
	buf = buf[:n]
	if i := bytes.IndexByte(buf, '\n'); i >= 0 {
		return buf[:i], true, nil
	}
	return buf, false, nil
}
