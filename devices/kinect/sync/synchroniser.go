// Copyright 2026 The kinectv2 Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sync

import "periph.io/x/kinectv2/devices/kinect/frame"

// depthCapacity bounds the depth deque; a backlog beyond this indicates
// the consumer has fallen far behind and older entries are dropped to
// bound memory rather than stall the reader.
const depthCapacity = 10

// Pair is one matched color/depth frame returned by Poll.
type Pair struct {
	Color frame.ColorPacket
	Depth frame.DepthPacket
}

// Synchroniser holds at most one color packet and a bounded run of depth
// packets, pairing them by timestamp. It is not safe for concurrent use;
// the single consumer goroutine that owns the device drives it.
type Synchroniser struct {
	color    *frame.ColorPacket
	depths   []frame.DepthPacket
}

// New returns an empty Synchroniser.
func New() *Synchroniser {
	return &Synchroniser{}
}

// PushColor replaces any currently held color packet with c.
func (s *Synchroniser) PushColor(c frame.ColorPacket) {
	s.color = &c
}

// PushDepth appends d to the depth deque, dropping the oldest entry first
// if the deque is already at capacity.
func (s *Synchroniser) PushDepth(d frame.DepthPacket) {
	if len(s.depths) == depthCapacity {
		s.depths = s.depths[1:]
	}
	s.depths = append(s.depths, d)
}

// Poll returns a matched pair if a color packet is held and some buffered
// depth packet's timestamp exceeds it. Matching discards every depth
// packet older than the match, consumes the held color packet, and leaves
// any depth packets newer than the match buffered for the next color
// packet.
func (s *Synchroniser) Poll() (Pair, bool) {
	if s.color == nil {
		return Pair{}, false
	}
	for i, d := range s.depths {
		if d.Timestamp > s.color.Timestamp {
			pair := Pair{Color: *s.color, Depth: d}
			s.depths = s.depths[i+1:]
			s.color = nil
			return pair, true
		}
	}
	return Pair{}, false
}

// Clear empties both the held color packet and the depth deque.
func (s *Synchroniser) Clear() {
	s.color = nil
	s.depths = nil
}
