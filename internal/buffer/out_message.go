// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package buffer

import (
	"fmt"
	"unsafe"

	"github.com/dispatchfs/fuse/internal/fusekernel"
)

// OutMessageHeaderSize is the size of the leading header in every
// properly-constructed OutMessage. Reset brings the message back to this
// size.
const OutMessageHeaderSize = fusekernel.OutHeaderSize

// OutMessage provides a mechanism for constructing a single contiguous fuse
// reply from multiple segments, where the first segment is always a
// fusekernel.OutHeader. The dispatcher builds each reply in a fresh
// OutMessage; one that is reused must be Reset between replies.
type OutMessage struct {
	payloadOffset int

	header  [OutMessageHeaderSize]byte
	payload [MaxReadSize]byte
}

// Reset resets m so it is ready to be reused. Afterward its contents are
// solely a zeroed fusekernel.OutHeader.
func (m *OutMessage) Reset() {
	m.payloadOffset = 0
	for i := range m.header {
		m.header[i] = 0
	}
}

// OutHeader returns a pointer to the header at the start of the message.
func (m *OutMessage) OutHeader() *fusekernel.OutHeader {
	return (*fusekernel.OutHeader)(unsafe.Pointer(&m.header[0]))
}

// Grow grows m's payload by n zeroed bytes, returning a pointer to the start
// of the new segment, or nil if there is insufficient room.
func (m *OutMessage) Grow(n int) unsafe.Pointer {
	p := m.GrowNoZero(n)
	if p == nil {
		return nil
	}
	zero := unsafe.Slice((*byte)(p), n)
	for i := range zero {
		zero[i] = 0
	}
	return p
}

// GrowNoZero is equivalent to Grow, except the new segment's previous
// contents are left in place. Use with caution: a stale OutMessage may
// still hold data from an earlier reply.
func (m *OutMessage) GrowNoZero(n int) unsafe.Pointer {
	if m.payloadOffset+n > len(m.payload) {
		return nil
	}
	p := unsafe.Pointer(&m.payload[m.payloadOffset])
	m.payloadOffset += n
	return p
}

// ShrinkTo shrinks m to the given total size (header included). It panics if
// n is out of [OutMessageHeaderSize, Len()].
func (m *OutMessage) ShrinkTo(n int) {
	if n < OutMessageHeaderSize || n > m.Len() {
		panic(fmt.Sprintf("ShrinkTo(%d): out of range [%d, %d]", n, OutMessageHeaderSize, m.Len()))
	}
	m.payloadOffset = n - OutMessageHeaderSize
}

// Append grows by len(src) and copies src over the new segment. Panics if
// there is not enough room.
func (m *OutMessage) Append(src []byte) {
	p := m.GrowNoZero(len(src))
	if p == nil {
		panic(fmt.Sprintf("Can't grow %d bytes", len(src)))
	}
	copy(unsafe.Slice((*byte)(p), len(src)), src)
}

// AppendString is like Append, but accepts a string.
func (m *OutMessage) AppendString(src string) {
	m.Append([]byte(src))
}

// Len returns the current size of the message, header included.
func (m *OutMessage) Len() int {
	return OutMessageHeaderSize + m.payloadOffset
}

// Bytes returns the current contents of the message as a single contiguous
// slice, header followed by payload.
func (m *OutMessage) Bytes() []byte {
	b := make([]byte, m.Len())
	copy(b, m.header[:])
	copy(b[OutMessageHeaderSize:], m.payload[:m.payloadOffset])
	return b
}
