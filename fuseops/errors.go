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

import (
	"errors"
	"fmt"
	"syscall"
)

// The canonical error kind is simply syscall.Errno: it already carries an
// errno symbol and already implements error, so handlers can return
// ErrNoEnt, os errors that wrap a syscall.Errno, or a plain
// fmt.Errorf("...: %w", ErrIO) and have the wrapper layer recover the
// intended errno with errors.As.
//
// The aliases below spell out the POSIX errno set this package's operations
// are documented to use. They are ordinary syscall.Errno values, not a new
// type, so `err == fuseops.ErrNoEnt` and `errors.Is(err, syscall.ENOENT)`
// both work.
const (
	ErrNoEnt     = syscall.ENOENT
	ErrIO        = syscall.EIO
	ErrInval     = syscall.EINVAL
	ErrAcces     = syscall.EACCES
	ErrPerm      = syscall.EPERM
	ErrNoSys     = syscall.ENOSYS
	ErrNotDir    = syscall.ENOTDIR
	ErrIsDir     = syscall.EISDIR
	ErrNotEmpty  = syscall.ENOTEMPTY
	ErrExist     = syscall.EEXIST
	ErrBadF      = syscall.EBADF
	ErrFBig      = syscall.EFBIG
	ErrNoSpc     = syscall.ENOSPC
	ErrROFS      = syscall.EROFS
	ErrIntr      = syscall.EINTR
	ErrTimedOut  = syscall.ETIMEDOUT
	ErrCanceled  = syscall.ECANCELED
	ErrNotSup    = syscall.ENOTSUP
	ErrRange     = syscall.ERANGE
	ErrNoData    = syscall.ENODATA
	ErrNameTooLg = syscall.ENAMETOOLONG
	ErrXDev      = syscall.EXDEV
	ErrNoAttr    = syscall.ENODATA
	ErrLoop      = syscall.ELOOP
	ErrBusy      = syscall.EBUSY
	ErrNoTTY     = syscall.ENOTTY
	ErrOpNotSupp = syscall.EOPNOTSUPP
	ErrAgain     = syscall.EAGAIN
)

// invalidf builds an error that wraps ErrInval with an explanatory message,
// the shape every validator in this package returns on a violation.
func invalidf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, error(ErrInval))...)
}

// ToErrno recovers the canonical errno a handler or validator failure should
// be reported to the kernel as. Any error that does not wrap a
// syscall.Errno is mapped to ErrIO, per the result-shape-failure policy: a
// handler that raises an unrecognized error is a programming error at the
// handler boundary, and EIO is the only thing the kernel can do with it.
func ToErrno(err error) syscall.Errno {
	if err == nil {
		return 0
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return ErrIO
}
