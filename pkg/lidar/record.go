// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lidar

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// RecordFormat identifies a recording stream
const RecordFormat = "lidarstat/1"

// RecordHeader is the first CBOR item of a recording
type RecordHeader struct {
	Format  string `cbor:"format"`
	Session string `cbor:"session"`
	Model   string `cbor:"model,omitempty"`
	Mode    string `cbor:"mode"`
	Started int64  `cbor:"started"` // unix nanoseconds
	Angles  []int  `cbor:"angles"`
}

// Record is one reading, encoded as [angle, distance_cm, unix_nanos]
type Record struct {
	_        struct{} `cbor:",toarray"`
	Angle    int
	Distance float64
	Time     int64
}

// NewRecordHeader fills a header with a fresh session id
func NewRecordHeader(model string, mode Mode, angles []int) RecordHeader {
	return RecordHeader{
		Format:  RecordFormat,
		Session: uuid.NewString(),
		Model:   model,
		Mode:    mode.String(),
		Started: time.Now().UnixNano(),
		Angles:  angles,
	}
}

// Recorder appends readings to a CBOR stream. Notify may be registered
// directly as an observer callback.
type Recorder struct {
	mu    sync.Mutex
	enc   *cbor.Encoder
	count uint64
	err   error
	now   func() time.Time
}

// NewRecorder writes header to w and returns a recorder for the readings
func NewRecorder(w io.Writer, header RecordHeader) (*Recorder, error) {
	enc := cbor.NewEncoder(w)
	if err := enc.Encode(header); err != nil {
		return nil, fmt.Errorf("failed to write recording header: %w", err)
	}
	return &Recorder{enc: enc, now: time.Now}, nil
}

// Notify records one reading. The first write error is kept and every
// later reading is dropped.
func (r *Recorder) Notify(data SampleData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	rec := Record{Angle: data.Angle, Distance: data.Distance, Time: r.now().UnixNano()}
	if err := r.enc.Encode(rec); err != nil {
		r.err = fmt.Errorf("failed to write record %d: %w", r.count, err)
		return
	}
	r.count++
}

// Count returns how many readings were written
func (r *Recorder) Count() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Err returns the first write error
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// RecordReader reads back a recording
type RecordReader struct {
	dec    *cbor.Decoder
	Header RecordHeader
}

// NewRecordReader reads and checks the header of a recording
func NewRecordReader(r io.Reader) (*RecordReader, error) {
	dec := cbor.NewDecoder(r)
	var header RecordHeader
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("failed to decode recording header: %w", err)
	}
	if header.Format != RecordFormat {
		return nil, fmt.Errorf("unsupported recording format %q", header.Format)
	}
	return &RecordReader{dec: dec, Header: header}, nil
}

// Next returns the next reading, or io.EOF at the end of the stream
func (rr *RecordReader) Next() (Record, error) {
	var rec Record
	if err := rr.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return rec, io.EOF
		}
		return rec, fmt.Errorf("failed to decode record: %w", err)
	}
	return rec, nil
}

// Replay dispatches every remaining reading into obs, in recorded order,
// and returns how many were read.
func (rr *RecordReader) Replay(obs *Observer) (int, error) {
	n := 0
	for {
		rec, err := rr.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		obs.Dispatch(rec.Angle, rec.Distance)
		n++
	}
}
