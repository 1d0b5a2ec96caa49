package netlog

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestCBORFileSink_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cbor")
	sink, err := NewCBORFileSink(path)
	if err != nil {
		t.Fatalf("NewCBORFileSink() error = %v", err)
	}

	base := time.Date(2026, 3, 1, 9, 0, 0, 123456789, time.UTC)
	written := []Entry{
		{ID: "1", Time: base, Level: LevelEvent, Event: "NetworkListChanged", Detail: "Size:3"},
		{ID: "2", Time: base.Add(time.Millisecond), Level: LevelError, Event: "SetTechnologyEnabled failed", Detail: "cellular: no modem"},
	}
	for _, e := range written {
		if err := sink.Write(context.Background(), e); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got, err := ReadCBORFile(path, Filter{})
	if err != nil {
		t.Fatalf("ReadCBORFile() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d entries, want 2", len(got))
	}
	for i := range written {
		if got[i].ID != written[i].ID || got[i].Level != written[i].Level ||
			got[i].Event != written[i].Event || !got[i].Time.Equal(written[i].Time) {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], written[i])
		}
	}

	errorsOnly, err := ReadCBORFile(path, Filter{MinLevel: LevelError})
	if err != nil {
		t.Fatal(err)
	}
	if len(errorsOnly) != 1 || errorsOnly[0].ID != "2" {
		t.Errorf("filtered read = %+v", errorsOnly)
	}
}

func TestCBORFileSink_AppendsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cbor")
	for i := 0; i < 2; i++ {
		sink, err := NewCBORFileSink(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := sink.Write(context.Background(), Entry{ID: "x", Event: "RequestScan"}); err != nil {
			t.Fatal(err)
		}
		sink.Close() //nolint:errcheck // test
	}
	got, err := ReadCBORFile(path, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("read %d entries after two opens, want 2", len(got))
	}
}

func TestCBORFileSink_WriteAfterClose(t *testing.T) {
	sink, err := NewCBORFileSink(filepath.Join(t.TempDir(), "events.cbor"))
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Fatal(err)
	}
	if err := sink.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := sink.Write(context.Background(), Entry{}); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("Write() after Close error = %v, want ErrSinkClosed", err)
	}
}

func TestReadCBOR_Corrupt(t *testing.T) {
	if _, err := ReadCBOR(bytes.NewReader([]byte{0xff, 0x00}), Filter{}); err == nil {
		t.Error("ReadCBOR() expected error for corrupt stream")
	}
}
