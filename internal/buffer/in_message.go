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
	"io"
	"unsafe"

	"github.com/dispatchfs/fuse/internal/fusekernel"
)

// MaxWriteSize bounds the payload of a single WRITE request the core will
// accept, matching the value advertised to the kernel in the INIT reply.
const MaxWriteSize = 1 << 20

// MaxReadSize bounds the total size of a single message read from or
// written to /dev/fuse, payload plus every fixed-size header it can carry.
const MaxReadSize = MaxWriteSize + 4096

// InMessage is an incoming message from the kernel, including the leading
// fusekernel.InHeader. Each Init call reads exactly one datagram; /dev/fuse
// never coalesces or splits a kernel request across reads.
type InMessage struct {
	buf    [MaxReadSize]byte
	len    int
	offset int
}

// Init reads a single message via one call to r.Read. The first call to
// Consume afterward consumes the bytes directly following the InHeader.
func (m *InMessage) Init(r io.Reader) error {
	n, err := r.Read(m.buf[:])
	if err != nil {
		return err
	}
	if n < fusekernel.InHeaderSize {
		return fmt.Errorf("fuse: read %d bytes, too small for a header", n)
	}
	m.len = n
	m.offset = fusekernel.InHeaderSize
	return nil
}

// Header returns a reference to the header read in the most recent Init.
func (m *InMessage) Header() *fusekernel.InHeader {
	return (*fusekernel.InHeader)(unsafe.Pointer(&m.buf[0]))
}

// Consume consumes the next n bytes of the message, returning nil if fewer
// than n bytes remain.
func (m *InMessage) Consume(n uintptr) unsafe.Pointer {
	if m.offset+int(n) > m.len {
		return nil
	}
	p := unsafe.Pointer(&m.buf[m.offset])
	m.offset += int(n)
	return p
}

// ConsumeBytes is equivalent to Consume, but returns a slice. The result is
// nil if Consume would fail.
func (m *InMessage) ConsumeBytes(n uintptr) []byte {
	if m.offset+int(n) > m.len {
		return nil
	}
	start := m.offset
	m.offset += int(n)
	return m.buf[start:m.offset:m.offset]
}

// Remaining returns every byte not yet consumed.
func (m *InMessage) Remaining() []byte {
	return m.buf[m.offset:m.len]
}

// Len returns the number of bytes read by the most recent Init, header
// included.
func (m *InMessage) Len() int {
	return m.len
}
