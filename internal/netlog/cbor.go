package netlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

var (
	entryEncMode cbor.EncMode
	entryDecMode cbor.DecMode
)

func init() {
	var err error

	entryEncMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("netlog: creating CBOR encoder mode: %v", err))
	}

	entryDecMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("netlog: creating CBOR decoder mode: %v", err))
	}
}

// CBORFileSink appends entries to a file as a stream of CBOR items.
// It is safe for concurrent use.
type CBORFileSink struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	closed  bool
}

// NewCBORFileSink opens path for appending, creating it with 0600 if needed.
func NewCBORFileSink(path string) (*CBORFileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening event log file: %w", err)
	}
	return &CBORFileSink{file: f, encoder: entryEncMode.NewEncoder(f)}, nil
}

// Write appends one entry.
func (s *CBORFileSink) Write(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	if err := s.encoder.Encode(e); err != nil {
		return fmt.Errorf("encoding network event: %w", err)
	}
	return nil
}

// Close closes the file. Further writes fail with ErrSinkClosed.
func (s *CBORFileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

// ReadCBOR decodes every entry from r that matches f.
func ReadCBOR(r io.Reader, f Filter) ([]Entry, error) {
	dec := entryDecMode.NewDecoder(r)
	var out []Entry
	for {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return out, fmt.Errorf("decoding network event: %w", err)
		}
		if f.matches(e) {
			out = append(out, e)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out, nil
}

// ReadCBORFile reads the entries written by a CBORFileSink at path.
func ReadCBORFile(path string, f Filter) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening event log file: %w", err)
	}
	defer file.Close()
	return ReadCBOR(file, f)
}

var (
	_ Sink = (*CBORFileSink)(nil)
	_ Sink = (*SQLiteSink)(nil)
)
