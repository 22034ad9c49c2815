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

// Package fuseops defines the data model shared by every FUSE operation: the
// nominal identifier types, the request/response pairs a handler table may
// populate, and the per-operation input validators. It has no dependency on
// the dispatcher or transport layers in the parent package, so a handler
// author can import it alone.
package fuseops

import (
	"time"
)

// InodeID uniquely identifies a file or directory within one mounted file
// system. File systems may mint any value except RootInodeID.
//
// This corresponds to struct inode::i_no in the kernel VFS layer.
type InodeID uint64

// RootInodeID is the distinguished inode ID that identifies the root of the
// file system. Unlike every other inode ID, which is minted by the file
// system, the kernel may send a request naming this ID without the file
// system ever having returned it from a previous response.
const RootInodeID InodeID = 1

// HandleID is an opaque value allocated by the core on a successful Open,
// Create, or OpenDir, and echoed by the kernel in follow-up requests against
// the same struct file. Unique per session across all open files and
// directories; released on Release/ReleaseDir.
type HandleID uint64

// GenerationNumber distinguishes successive incarnations of an inode ID that
// a file system has recycled. Irrelevant for file systems that will not be
// exported over NFS.
type GenerationNumber uint64

// DirOffset is an opaque cursor into an open directory handle. The kernel
// treats it as opaque and only ever echoes back a value the core previously
// returned from ReadDir.
type DirOffset uint64

// Mode is the nominal wrapper around a POSIX mode_t: the low 12 bits are
// permission bits, the upper bits carry the file type in the raw POSIX
// encoding (S_IFDIR, S_IFREG, ...). The codec copies it to the kernel
// unchanged.
type Mode uint32

// Flags mirrors the open(2)/O_* flag bits passed across the wire.
type Flags uint32

// Uid is a nominal wrapper over a 32-bit POSIX uid_t.
type Uid uint32

// Gid is a nominal wrapper over a 32-bit POSIX gid_t.
type Gid uint32

// Dev is a nominal wrapper over a POSIX dev_t, used by Mknod and by the rdev
// field of StatResult for device special files.
type Dev uint32

const (
	maxUint32 = 1<<32 - 1
	maxInt64  = 1<<63 - 1
)

// NewInodeID validates and constructs an InodeID from a generic 64-bit
// integer such as one decoded off the wire or passed across a language
// boundary. It fails with ErrInval unless x is representable as a 64-bit
// unsigned value, i.e. unless x >= 0.
func NewInodeID(x int64) (InodeID, error) {
	if x < 0 {
		return 0, invalidf("inode id %d is negative", x)
	}
	return InodeID(x), nil
}

// NewHandleID is NewInodeID's counterpart for file handles.
func NewHandleID(x int64) (HandleID, error) {
	if x < 0 {
		return 0, invalidf("handle id %d is negative", x)
	}
	return HandleID(x), nil
}

// NewMode validates and constructs a Mode from a generic integer. Mode,
// Uid, Gid, and Dev are all 32-bit wire quantities, so x must additionally
// fit in 32 bits.
func NewMode(x int64) (Mode, error) {
	if x < 0 || x > maxUint32 {
		return 0, invalidf("mode %d out of 32-bit range", x)
	}
	return Mode(x), nil
}

// NewUid validates and constructs a Uid.
func NewUid(x int64) (Uid, error) {
	if x < 0 || x > maxUint32 {
		return 0, invalidf("uid %d out of 32-bit range", x)
	}
	return Uid(x), nil
}

// NewGid validates and constructs a Gid.
func NewGid(x int64) (Gid, error) {
	if x < 0 || x > maxUint32 {
		return 0, invalidf("gid %d out of 32-bit range", x)
	}
	return Gid(x), nil
}

// NewDev validates and constructs a Dev.
func NewDev(x int64) (Dev, error) {
	if x < 0 || x > maxUint32 {
		return 0, invalidf("dev %d out of 32-bit range", x)
	}
	return Dev(x), nil
}

// NewFlags validates and constructs Flags. Like Mode/Uid/Gid/Dev, x must be
// non-negative and fit in 32 bits; values at or above 1<<31 are accepted.
func NewFlags(x int64) (Flags, error) {
	if x < 0 || x > maxUint32 {
		return 0, invalidf("flags %d out of 32-bit range", x)
	}
	return Flags(x), nil
}

// Timestamp is a (seconds, nanoseconds) pair, matching the wire
// representation FUSE itself uses rather than time.Time, so that values
// round-trip exactly. Use ToTime/TimestampFromTime to interoperate with the
// standard library clock.
type Timestamp struct {
	Sec  int64
	Nsec uint32
}

// TimestampFromTime converts a time.Time to the wire pair. Sub-nanosecond
// precision, which Go's clock cannot produce anyway, is truncated.
func TimestampFromTime(t time.Time) Timestamp {
	return Timestamp{Sec: t.Unix(), Nsec: uint32(t.Nanosecond())}
}

// ToTime converts back to a time.Time in UTC.
func (t Timestamp) ToTime() time.Time {
	return time.Unix(t.Sec, int64(t.Nsec)).UTC()
}

// Valid reports whether Nsec is within [0, 1e9), the invariant every
// StatResult and Timestamp field must satisfy.
func (t Timestamp) Valid() bool {
	return t.Nsec < 1e9
}
