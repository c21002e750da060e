// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"periph.io/x/kinectv2/devices/kinect/wire"
)

// fakeTransport is an in-memory Transport double, grounded on the same
// scripted-fake-conn idiom the connection-level fakes in this repo use for
// transport layers they cannot exercise against real hardware.
type fakeTransport struct {
	written    [][]byte
	reads      [][]byte
	readIdx    int
	writeErr   error
	readErr    error
	clearedOut bool
	clearedIn  bool
}

func (f *fakeTransport) WriteBulkOut(b []byte, _ time.Duration) (int, error) {
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	cp := append([]byte(nil), b...)
	f.written = append(f.written, cp)
	return len(b), nil
}

func (f *fakeTransport) ReadBulkIn(b []byte, _ time.Duration) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	if f.readIdx >= len(f.reads) {
		return 0, nil
	}
	src := f.reads[f.readIdx]
	f.readIdx++
	n := copy(b, src)
	return n, nil
}

func (f *fakeTransport) ClearHaltOut() error {
	f.clearedOut = true
	return nil
}

func (f *fakeTransport) ClearHaltIn() error {
	f.clearedIn = true
	return nil
}

func TestExecuteNoPayloadCommand(t *testing.T) {
	ft := &fakeTransport{
		reads: [][]byte{wire.EncodeCompletion(1)},
	}
	tx := NewTransaction(ft)

	result, err := tx.Execute(Stop, nil)
	require.NoError(t, err)
	assert.Empty(t, result)
	require.Len(t, ft.written, 1)

	hdr := wire.DecodeHeader(ft.written[0])
	assert.Equal(t, wire.RequestMagic, hdr.Magic)
	assert.Equal(t, uint32(1), hdr.Sequence)
	assert.Equal(t, Stop.ID, hdr.CommandID)
}

func TestExecuteWithPayloadCommand(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	d := ReadStatus
	ft := &fakeTransport{
		reads: [][]byte{payload, wire.EncodeCompletion(1)},
	}
	tx := NewTransaction(ft)

	result, err := tx.Execute(d, []uint32{0x090000})
	require.NoError(t, err)
	assert.Equal(t, payload, result)
}

func TestExecuteSequenceMismatch(t *testing.T) {
	ft := &fakeTransport{
		reads: [][]byte{wire.EncodeCompletion(99)},
	}
	tx := NewTransaction(ft)

	_, err := tx.Execute(Stop, nil)
	assert.ErrorIs(t, errCause(err), ErrSequenceMismatch)
}

func TestExecuteSequenceMismatchCarriesExpectedAndObserved(t *testing.T) {
	ft := &fakeTransport{
		reads: [][]byte{wire.EncodeCompletion(43)},
	}
	tx := NewTransaction(ft)
	tx.seq = 41 // the next request sequence will be 42

	_, err := tx.Execute(Stop, nil)
	require.ErrorIs(t, err, ErrSequenceMismatch)
	assert.Contains(t, err.Error(), "42")
	assert.Contains(t, err.Error(), "43")
}

func TestExecutePrematureComplete(t *testing.T) {
	d := ReadStatus
	ft := &fakeTransport{
		// The device returns the completion frame where a 4-byte payload
		// was expected, stamped with a sequence that does not match the
		// request this transaction just sent.
		reads: [][]byte{wire.EncodeCompletion(7), wire.EncodeCompletion(1)},
	}
	tx := NewTransaction(ft)

	_, err := tx.Execute(d, []uint32{0x090000})
	assert.Equal(t, ErrPrematureComplete, err)
}

func TestExecuteWrongParamCount(t *testing.T) {
	ft := &fakeTransport{}
	tx := NewTransaction(ft)
	_, err := tx.Execute(ReadStatus, nil)
	assert.Error(t, err)
}

func TestLedSettingsParamsClampsLevels(t *testing.T) {
	l := BlinkingLed(LedSecondary, 5000, 2000, 500*time.Millisecond)
	params := l.Params()
	assert.Equal(t, uint32(1)+uint32(LedBlink)<<16, params[0])
	assert.Equal(t, uint32(1000)+uint32(1000)<<16, params[1])
	assert.Equal(t, uint32(500), params[2])
}

func errCause(err error) error {
	type causer interface{ Cause() error }
	for err != nil {
		c, ok := err.(causer)
		if !ok {
			return err
		}
		err = c.Cause()
	}
	return err
}
