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

package fuseops

// StatResult carries the full stat(2)-equivalent attribute set for an inode.
// The invariant Nsec fields must satisfy is enforced by Valid, which the
// wrapper layer calls as part of result-shape validation.
type StatResult struct {
	Ino     InodeID
	Mode    Mode
	Nlink   uint32
	Uid     Uid
	Gid     Gid
	Rdev    Dev
	Size    uint64
	Blksize uint32
	Blocks  uint64
	Atime   Timestamp
	Mtime   Timestamp
	Ctime   Timestamp

	// Crtime is the creation time. Honored on Darwin; zero elsewhere.
	Crtime Timestamp
}

// Valid reports whether every timestamp in the result satisfies the
// nsec-in-range invariant. The wrapper layer maps a violation to EIO rather
// than trusting the handler.
func (s StatResult) Valid() bool {
	return s.Atime.Valid() && s.Mtime.Valid() && s.Ctime.Valid() && s.Crtime.Valid()
}

// RequestContext carries the credentials and umask of the process that
// originated a request. It is immutable and is supplied fresh to every
// handler invocation; handlers must not retain it past the call that
// provided it.
type RequestContext struct {
	Uid   Uid
	Gid   Gid
	Pid   uint32
	Umask Mode
}

// FileInfo is echoed by Open/OpenDir responses and accepted by any
// subsequent operation against the same handle. Fh must equal a value the
// core allocated (see the handle registry), or zero if the handler
// disclaims per-handle state.
type FileInfo struct {
	Fh HandleID

	Flags Flags

	// DirectIO bypasses the kernel page cache for this open file.
	DirectIO bool

	// KeepCache tells the kernel not to invalidate cached pages on open.
	KeepCache bool

	// Nonseekable marks the handle as not supporting seeks (e.g. a pipe-like
	// virtual file).
	Nonseekable bool
}

// ChildInodeEntry is the shared payload of every operation that causes the
// kernel to learn about (and hold a lookup-count reference to) a child
// inode: LookUp, MkDir, CreateFile, CreateSymlink, Link.
type ChildInodeEntry struct {
	Child      InodeID
	Generation GenerationNumber
	Attr       StatResult

	// AttrTimeout and EntryTimeout bound how long the kernel may cache the
	// attributes and the name->inode mapping (respectively) before
	// revalidating with the core, in seconds. The wrapper layer replaces a
	// zero value with 1.0.
	AttrTimeout  float64
	EntryTimeout float64
}

// Valid reports whether the entry's attributes satisfy their invariant and
// the timeouts are non-negative.
func (e ChildInodeEntry) Valid() bool {
	return e.Attr.Valid() && e.AttrTimeout >= 0 && e.EntryTimeout >= 0
}

// StatVfs mirrors struct statvfs, the result of the Statfs operation. Every
// field is a count and so must be non-negative; being unsigned already
// enforces that at the type level.
type StatVfs struct {
	Blocks     uint64
	BlocksFree uint64
	BlocksAvail uint64
	Files      uint64
	FilesFree  uint64
	BlockSize  uint32
	MaxNameLen uint32
	FragSize   uint32
}
