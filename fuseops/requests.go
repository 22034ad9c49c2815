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

// Every operation is modeled as a (Request, Response) pair rather than the
// mutate-in-place Op structs older trees in this lineage used: handlers are
// plain functions of their arguments, which is what lets the wrapper layer
// validate a handler's return value before trusting it (see the parent
// package's result-shape checks).

////////////////////////////////////////////////////////////////////////
// Init
////////////////////////////////////////////////////////////////////////

type InitRequest struct {
	Header RequestContext
}

type InitResponse struct{}

////////////////////////////////////////////////////////////////////////
// Inode lookup & attributes
////////////////////////////////////////////////////////////////////////

type LookUpInodeRequest struct {
	Header RequestContext
	Parent InodeID
	Name   string
}

type LookUpInodeResponse struct {
	Entry ChildInodeEntry
}

type GetInodeAttributesRequest struct {
	Header RequestContext
	Inode  InodeID

	// Handle is the FileInfo.Fh from a prior Open/Create call, if the kernel
	// is asking for attributes of an already-open file. Zero if not.
	Handle HandleID
}

type GetInodeAttributesResponse struct {
	Attr StatResult

	// Timeout defaults to 1.0 second if the handler leaves it at zero; see
	// ValidateTimeout.
	Timeout float64
}

// SetInodeAttributesRequest is the generic carrier for SetAttr; Chmod,
// Chown, and Truncate requests below exist so a handler table can
// distinguish the common individual cases without inspecting a field mask.
type SetInodeAttributesRequest struct {
	Header RequestContext
	Inode  InodeID

	Atime *Timestamp
	Mtime *Timestamp

	Handle *HandleID
}

type SetInodeAttributesResponse struct {
	Attr    StatResult
	Timeout float64
}

type ChmodRequest struct {
	Header RequestContext
	Inode  InodeID
	Mode   Mode
}

type ChmodResponse struct {
	Attr    StatResult
	Timeout float64
}

type ChownRequest struct {
	Header RequestContext
	Inode  InodeID

	// Uid and Gid are nil when the corresponding field should be left
	// unchanged, mirroring chown(2)'s -1 sentinel.
	Uid *Uid
	Gid *Gid
}

type ChownResponse struct {
	Attr    StatResult
	Timeout float64
}

type TruncateRequest struct {
	Header RequestContext
	Inode  InodeID
	Size   int64
}

type TruncateResponse struct {
	Attr    StatResult
	Timeout float64
}

type ForgetInodeRequest struct {
	Header  RequestContext
	Inode   InodeID
	Nlookup uint64
}

type ForgetInodeResponse struct{}

// ForgetInodeEntry is one element of a batched ForgetMultiRequest.
type ForgetInodeEntry struct {
	Inode   InodeID
	Nlookup uint64
}

type ForgetMultiRequest struct {
	Header  RequestContext
	Entries []ForgetInodeEntry
}

type ForgetMultiResponse struct{}

////////////////////////////////////////////////////////////////////////
// Inode creation
////////////////////////////////////////////////////////////////////////

type MkDirRequest struct {
	Header RequestContext
	Parent InodeID
	Name   string
	Mode   Mode
}

type MkDirResponse struct {
	Entry ChildInodeEntry
}

type MkNodRequest struct {
	Header RequestContext
	Parent InodeID
	Name   string
	Mode   Mode
	Rdev   Dev
}

type MkNodResponse struct {
	Entry ChildInodeEntry
}

type CreateFileRequest struct {
	Header RequestContext
	Parent InodeID
	Name   string
	Mode   Mode
	Flags  Flags
}

type CreateFileResponse struct {
	Entry  ChildInodeEntry
	Handle HandleID
}

type CreateSymlinkRequest struct {
	Header RequestContext
	Parent InodeID
	Name   string
	Target string
}

type CreateSymlinkResponse struct {
	Entry ChildInodeEntry
}

type CreateLinkRequest struct {
	Header RequestContext
	Parent InodeID
	Name   string
	Target InodeID
}

type CreateLinkResponse struct {
	Entry ChildInodeEntry
}

////////////////////////////////////////////////////////////////////////
// Unlinking, renaming
////////////////////////////////////////////////////////////////////////

type RmDirRequest struct {
	Header RequestContext
	Parent InodeID
	Name   string
}

type RmDirResponse struct{}

type UnlinkRequest struct {
	Header RequestContext
	Parent InodeID
	Name   string
}

type UnlinkResponse struct{}

type RenameRequest struct {
	Header    RequestContext
	OldParent InodeID
	OldName   string
	NewParent InodeID
	NewName   string
	Flags     RenameFlags
}

type RenameResponse struct{}

////////////////////////////////////////////////////////////////////////
// Directory handles
////////////////////////////////////////////////////////////////////////

type OpenDirRequest struct {
	Header RequestContext
	Inode  InodeID
	Flags  Flags
}

type OpenDirResponse struct {
	Handle HandleID
}

type ReadDirRequest struct {
	Header RequestContext
	Inode  InodeID
	Handle HandleID
	Offset DirOffset
	Size   int
}

type ReadDirResponse struct {
	// Entries must have strictly increasing Offset fields; an empty slice
	// indicates the end of the directory has been reached.
	Entries []Dirent
}

type ReleaseDirHandleRequest struct {
	Header RequestContext
	Inode  InodeID
	Handle HandleID
}

type ReleaseDirHandleResponse struct{}

////////////////////////////////////////////////////////////////////////
// File handles
////////////////////////////////////////////////////////////////////////

type OpenFileRequest struct {
	Header RequestContext
	Inode  InodeID
	Flags  Flags
}

type OpenFileResponse struct {
	FileInfo FileInfo
}

type ReadFileRequest struct {
	Header RequestContext
	Inode  InodeID
	Handle HandleID
	Offset int64
	Size   int
}

type ReadFileResponse struct {
	// Data is the bytes read. Less than the requested size indicates EOF; an
	// error must not accompany a short read at EOF.
	Data []byte
}

type WriteFileRequest struct {
	Header RequestContext
	Inode  InodeID
	Handle HandleID
	Offset int64
	Data   []byte
}

type WriteFileResponse struct {
	// BytesWritten must not exceed len(Data).
	BytesWritten int
}

type SyncFileRequest struct {
	Header RequestContext
	Inode  InodeID
	Handle HandleID
}

type SyncFileResponse struct{}

type FlushFileRequest struct {
	Header RequestContext
	Inode  InodeID
	Handle HandleID
}

type FlushFileResponse struct{}

type ReleaseFileHandleRequest struct {
	Header RequestContext
	Inode  InodeID
	Handle HandleID
}

type ReleaseFileHandleResponse struct{}

type ReadSymlinkRequest struct {
	Header RequestContext
	Inode  InodeID
}

type ReadSymlinkResponse struct {
	Target string
}

////////////////////////////////////////////////////////////////////////
// Filesystem-level
////////////////////////////////////////////////////////////////////////

type StatFSRequest struct {
	Header RequestContext
	Inode  InodeID
}

type StatFSResponse struct {
	StatVfs StatVfs
}

type AccessRequest struct {
	Header RequestContext
	Inode  InodeID
	Mask   uint32
}

type AccessResponse struct{}

////////////////////////////////////////////////////////////////////////
// Extended attributes
////////////////////////////////////////////////////////////////////////

type GetXattrRequest struct {
	Header RequestContext
	Inode  InodeID
	Name   string

	// Size is the maximum number of bytes the caller will accept; zero means
	// "tell me the size, don't return data".
	Size int
}

type GetXattrResponse struct {
	// Data is nil (with Size int set) when the request's Size was zero.
	Data []byte
	Size int
}

type ListXattrRequest struct {
	Header RequestContext
	Inode  InodeID
	Size   int
}

type ListXattrResponse struct {
	// Names lists the attribute names (the codec NUL-terminates each one on
	// the wire), or is nil with Size set if the request's Size was zero and
	// only the size was requested.
	Names []string
	Size  int
}

type SetXattrRequest struct {
	Header RequestContext
	Inode  InodeID
	Name   string
	Value  []byte
	Flags  Flags
}

type SetXattrResponse struct{}

type RemoveXattrRequest struct {
	Header RequestContext
	Inode  InodeID
	Name   string
}

type RemoveXattrResponse struct{}

////////////////////////////////////////////////////////////////////////
// Misc data-plane operations
////////////////////////////////////////////////////////////////////////

type CopyFileRangeRequest struct {
	Header  RequestContext
	InodeIn InodeID
	OffIn   int64
	HandleIn HandleID

	InodeOut InodeID
	OffOut   int64
	HandleOut HandleID

	Len   uint64
	Flags uint32
}

type CopyFileRangeResponse struct {
	// BytesCopied of zero signals the caller should fall back to a
	// plain read/write copy.
	BytesCopied uint64
}

type FallocateRequest struct {
	Header RequestContext
	Inode  InodeID
	Handle HandleID
	Mode   uint32
	Offset int64
	Length int64
}

type FallocateResponse struct{}

type LseekRequest struct {
	Header RequestContext
	Inode  InodeID
	Handle HandleID
	Offset int64
	Whence Whence
}

type LseekResponse struct {
	Offset int64
}

type IoctlRequest struct {
	Header RequestContext
	Inode  InodeID
	Handle HandleID
	Cmd    uint32
	Arg    uint64
	Flags  uint32
	InData []byte

	// OutSize is the maximum size of OutData the kernel will accept.
	OutSize int
}

type IoctlResponse struct {
	Result  int32
	OutData []byte
}

type PollRequest struct {
	Header     RequestContext
	Inode      InodeID
	Handle     HandleID
	KernelHandle uint64
	Flags      uint32
}

type PollResponse struct {
	Revents uint32
}

// FileLockType identifies the lock operation requested of Flock, matching
// the POSIX F_RDLCK/F_WRLCK/F_UNLCK trio.
type FileLockType int

const (
	LockRead   FileLockType = 0
	LockWrite  FileLockType = 1
	LockUnlock FileLockType = 2
)

type FlockRequest struct {
	Header    RequestContext
	Inode     InodeID
	Handle    HandleID
	LockOwner uint64
	Type      FileLockType

	// NonBlocking mirrors LOCK_NB: fail with ErrAgain instead of waiting if
	// the lock is unavailable.
	NonBlocking bool
}

type FlockResponse struct{}

////////////////////////////////////////////////////////////////////////
// Interrupt (handled by the dispatcher, not by a handler)
////////////////////////////////////////////////////////////////////////

// InterruptRequest never reaches a handler table entry: the dispatcher
// consumes INTERRUPT directly to cancel the named pending request's context,
// decoding it into fusekernel.InterruptIn rather than into this type.
type InterruptRequest struct {
	Header   RequestContext
	UniqueID uint64
}
