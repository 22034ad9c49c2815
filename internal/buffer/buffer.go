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

// Package buffer provides the wire-level message buffers the fuse package
// reads requests into and writes replies out of. It knows the byte layout
// of fusekernel structures but nothing about fuseops or the dispatcher.
package buffer

import (
	"unsafe"

	"github.com/dispatchfs/fuse/internal/fusekernel"
)

// Buffer constructs a single contiguous fuse message from multiple
// segments, where the first segment is always a zeroed fusekernel.OutHeader.
// Unlike OutMessage it grows on demand instead of using a fixed-size array.
// The dispatcher's own replies, the INIT reply included, are built with
// OutMessage.
//
// Must be created with New. Exception: the zero value has Bytes() == nil.
type Buffer struct {
	slice []byte
}

// New returns a buffer whose initial contents are a zeroed
// fusekernel.OutHeader, with room to grow by extra more bytes before a
// reallocation is needed.
func New(extra uintptr) (b Buffer) {
	const headerSize = uintptr(fusekernel.OutHeaderSize)
	b.slice = make([]byte, headerSize, headerSize+extra)
	return
}

// OutHeader returns a pointer to the header at the start of the buffer.
func (b *Buffer) OutHeader() *fusekernel.OutHeader {
	return (*fusekernel.OutHeader)(unsafe.Pointer(&b.slice[0]))
}

// Grow extends the buffer by size zeroed bytes, returning a pointer to the
// start of the new segment.
func (b *Buffer) Grow(size uintptr) unsafe.Pointer {
	n := len(b.slice)
	b.slice = append(b.slice, make([]byte, size)...)
	return unsafe.Pointer(&b.slice[n])
}

// Bytes returns a reference to the current contents of the buffer.
func (b *Buffer) Bytes() []byte {
	return b.slice
}
