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

import "strings"

// MaxNameLen is the maximum length, in bytes, of a single path component
// the core will accept. It matches the FUSE wire limit, not PATH_MAX.
const MaxNameLen = 255

// MaxPathLen bounds the length of a symlink target (readlink), matching the
// platform's PATH_MAX.
const MaxPathLen = 4096

// ValidateName fails with ErrInval unless name is a non-empty path
// component no longer than MaxNameLen bytes containing neither NUL nor '/'.
// Only the name form is ever validated by the core: the wire protocol is
// inode-based, so no component is ever an absolute path.
func ValidateName(name string) error {
	if len(name) == 0 {
		return invalidf("name must not be empty")
	}
	if len(name) > MaxNameLen {
		return invalidf("name %q exceeds %d bytes", name, MaxNameLen)
	}
	if strings.IndexByte(name, 0) >= 0 {
		return invalidf("name %q contains a NUL byte", name)
	}
	if strings.IndexByte(name, '/') >= 0 {
		return invalidf("name %q contains a slash", name)
	}
	return nil
}

// ValidateOffsetSize fails with ErrInval unless offset is representable as a
// non-negative 64-bit value and size is representable as a non-negative
// 32-bit value, the shape every Read-like operation requires.
func ValidateOffsetSize(offset int64, size int64) error {
	if offset < 0 {
		return invalidf("offset %d is negative", offset)
	}
	if size < 0 || size > maxUint32>>1 {
		return invalidf("size %d out of 32-bit range", size)
	}
	return nil
}

// ValidateSize64 fails with ErrInval unless size is a non-negative 64-bit
// value, the shape Truncate and SetAttr(size) require.
func ValidateSize64(size int64) error {
	if size < 0 {
		return invalidf("size %d is negative", size)
	}
	return nil
}

// ValidateTimeout fails with ErrInval unless d is finite and non-negative.
// "Finite" is automatic for a float64 produced by arithmetic on durations in
// this package, but handler-supplied timeouts are validated the same way a
// dynamically typed runtime would validate a number coming from handler
// code, per spec.
func ValidateTimeout(d float64) error {
	if d < 0 {
		return invalidf("timeout %v is negative", d)
	}
	if d != d { // NaN
		return invalidf("timeout is NaN")
	}
	if d > 1e18 {
		return invalidf("timeout %v is not finite", d)
	}
	return nil
}

// RenameFlags are the behavioral flags accepted by the Rename operation.
type RenameFlags uint32

const (
	// RenameNoReplace causes Rename to fail with ErrExist if newname already
	// exists in newparent, instead of silently replacing it.
	RenameNoReplace RenameFlags = 1 << iota

	// RenameExchange atomically swaps oldname and newname instead of moving
	// oldname over newname.
	RenameExchange

	// RenameWhiteout leaves a whiteout entry in place of oldname. Only
	// meaningful to overlay-style file systems; most handlers ignore it.
	RenameWhiteout
)

// Validate fails with ErrInval if both NoReplace and Exchange are set, since
// the two are mutually exclusive per the rename2(2) contract.
func (f RenameFlags) Validate() error {
	if f&RenameNoReplace != 0 && f&RenameExchange != 0 {
		return invalidf("rename flags %#x set both NOREPLACE and EXCHANGE", uint32(f))
	}
	return nil
}

// Whence selects the reference point for Lseek.
type Whence int

const (
	WhenceSet  Whence = 0
	WhenceCur  Whence = 1
	WhenceEnd  Whence = 2
	WhenceData Whence = 3
	WhenceHole Whence = 4
)

func (w Whence) Valid() bool {
	switch w {
	case WhenceSet, WhenceCur, WhenceEnd, WhenceData, WhenceHole:
		return true
	default:
		return false
	}
}
