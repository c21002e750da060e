// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package command

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"periph.io/x/kinectv2/devices/kinect/wire"
)

// Timeout is the per-operation bulk transfer deadline used throughout the
// command channel.
const Timeout = 1 * time.Second

// Sentinel errors a caller may match against with errors.Cause.
var (
	ErrShortWrite       = errors.New("command: short write")
	ErrShortRead        = errors.New("command: short read")
	ErrSequenceMismatch = errors.New("command: response sequence does not match request")
	ErrPrematureComplete = errors.New("command: device completed before returning its payload")
)

// Transaction executes commands against a Transport and tracks the shared
// request sequence counter.
type Transaction struct {
	t       Transport
	seq     uint32
}

// NewTransaction returns a Transaction bound to t with its sequence counter
// reset to zero.
func NewTransaction(t Transport) *Transaction {
	return &Transaction{t: t}
}

// Execute runs one command end to end: it serializes the request, writes it
// to the out endpoint, optionally reads back a payload response, and always
// reads and validates the final 16-byte completion. It returns the payload
// response bytes, which are empty when d.MaxResponseLen is 0.
func (tx *Transaction) Execute(d Def, params []uint32) ([]byte, error) {
	if len(params) != d.NParam {
		return nil, errors.Errorf("command: %s expects %d parameters, got %d", d.Name, d.NParam, len(params))
	}

	sequence := tx.nextSequence(d)
	if err := tx.send(d, sequence, params); err != nil {
		return nil, errors.Wrapf(err, "command: %s: send", d.Name)
	}

	var result []byte
	if d.MaxResponseLen > 0 {
		var err error
		// The buffer is never smaller than a completion, so a completion
		// sent in place of a shorter payload arrives whole.
		result, err = tx.receive(max(d.MaxResponseLen, uint32(wire.CompletionSize)), d.MinResponseLen)
		if err != nil {
			return nil, errors.Wrapf(err, "command: %s: receive response", d.Name)
		}
		// A response this transaction expected payload bytes for can
		// legitimately be exactly CompletionSize long and carry the
		// completion magic instead, if the device finished before it had
		// anything to return. That is reported distinctly from a sequence
		// mismatch on an actual payload.
		if len(result) == wire.CompletionSize && wire.IsCompletionMagic(result) {
			return nil, ErrPrematureComplete
		}
	}

	completion, err := tx.receive(uint32(wire.CompletionSize), uint32(wire.CompletionSize))
	if err != nil {
		return nil, errors.Wrapf(err, "command: %s: receive completion", d.Name)
	}
	c := wire.DecodeCompletion(completion)
	if c.Sequence != sequence {
		return nil, errors.Wrapf(ErrSequenceMismatch, "expected %d, got %d", sequence, c.Sequence)
	}
	return result, nil
}

func (tx *Transaction) nextSequence(d Def) uint32 {
	if !d.HasSequence {
		return 0
	}
	return atomic.AddUint32(&tx.seq, 1)
}

func (tx *Transaction) send(d Def, sequence uint32, params []uint32) error {
	req := wire.EncodeRequest(sequence, d.MaxResponseLen, d.ID, params)
	n, err := tx.t.WriteBulkOut(req, Timeout)
	if err != nil {
		if isStall(err) {
			if clearErr := tx.t.ClearHaltOut(); clearErr != nil {
				return errors.Wrap(clearErr, "clearing out-endpoint stall")
			}
		}
		return err
	}
	if n != len(req) {
		return errors.Wrapf(ErrShortWrite, "wrote %d of %d bytes", n, len(req))
	}
	return nil
}

func (tx *Transaction) receive(maxLen, minLen uint32) ([]byte, error) {
	buf := make([]byte, maxLen)
	n, err := tx.t.ReadBulkIn(buf, Timeout)
	if err != nil {
		if isStall(err) {
			if clearErr := tx.t.ClearHaltIn(); clearErr != nil {
				return nil, errors.Wrap(clearErr, "clearing in-endpoint stall")
			}
		}
		return nil, err
	}
	if uint32(n) < minLen {
		return nil, errors.Wrapf(ErrShortRead, "read %d of at least %d bytes", n, minLen)
	}
	return buf[:n], nil
}

// stallError is implemented by Transport errors that represent a halted
// endpoint (a USB STALL / EPIPE condition), so Transaction can recover via
// ClearHaltIn/ClearHaltOut without the command package depending on any
// particular USB library's error type.
type stallError interface {
	Stall() bool
}

func isStall(err error) bool {
	se, ok := errors.Cause(err).(stallError)
	return ok && se.Stall()
}
