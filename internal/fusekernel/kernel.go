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

// Package fusekernel mirrors the wire structures and constants of the Linux
// kernel's FUSE ABI (linux/fuse.h). Nothing in this package knows about
// fuseops; it is the lowest layer, imported by internal/buffer and by the
// codec in the parent package.
package fusekernel

import "unsafe"

// Protocol is a (major, minor) FUSE protocol version pair.
type Protocol struct {
	Major uint32
	Minor uint32
}

func (p Protocol) String() string {
	return itoa(int(p.Major)) + "." + itoa(int(p.Minor))
}

func (p Protocol) LT(q Protocol) bool {
	return p.Major < q.Major || (p.Major == q.Major && p.Minor < q.Minor)
}

func (p Protocol) GE(q Protocol) bool {
	return !p.LT(q)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

const (
	// KernelVersion and KernelMinorVersion are the highest protocol version
	// this package negotiates.
	KernelVersion      = 7
	KernelMinorVersion = 31

	MinKernelMinorVersion = 13

	RootID = 1
)

// Opcode identifies the kind of a request read from /dev/fuse.
type Opcode uint32

const (
	OpLookup      Opcode = 1
	OpForget      Opcode = 2
	OpGetattr     Opcode = 3
	OpSetattr     Opcode = 4
	OpReadlink    Opcode = 5
	OpSymlink     Opcode = 6
	OpMknod       Opcode = 8
	OpMkdir       Opcode = 9
	OpUnlink      Opcode = 10
	OpRmdir       Opcode = 11
	OpRename      Opcode = 12
	OpLink        Opcode = 13
	OpOpen        Opcode = 14
	OpRead        Opcode = 15
	OpWrite       Opcode = 16
	OpStatfs      Opcode = 17
	OpRelease     Opcode = 18
	OpFsync       Opcode = 20
	OpSetxattr    Opcode = 21
	OpGetxattr    Opcode = 22
	OpListxattr   Opcode = 23
	OpRemovexattr Opcode = 24
	OpFlush       Opcode = 25
	OpInit        Opcode = 26
	OpOpendir     Opcode = 27
	OpReaddir     Opcode = 28
	OpReleasedir  Opcode = 29
	OpFsyncdir    Opcode = 30
	OpGetlk       Opcode = 31
	OpSetlk       Opcode = 32
	OpSetlkw      Opcode = 33
	OpAccess      Opcode = 34
	OpCreate      Opcode = 35
	OpInterrupt   Opcode = 36
	OpBmap        Opcode = 37
	OpDestroy     Opcode = 38
	OpIoctl       Opcode = 39
	OpPoll        Opcode = 40
	OpNotifyReply Opcode = 41
	OpBatchForget Opcode = 42
	OpFallocate   Opcode = 43
	OpReaddirplus Opcode = 44
	OpRename2     Opcode = 45
	OpLseek       Opcode = 46
	OpCopyFileRange Opcode = 47
)

func (o Opcode) String() string {
	switch o {
	case OpLookup:
		return "LOOKUP"
	case OpForget:
		return "FORGET"
	case OpGetattr:
		return "GETATTR"
	case OpSetattr:
		return "SETATTR"
	case OpReadlink:
		return "READLINK"
	case OpSymlink:
		return "SYMLINK"
	case OpMknod:
		return "MKNOD"
	case OpMkdir:
		return "MKDIR"
	case OpUnlink:
		return "UNLINK"
	case OpRmdir:
		return "RMDIR"
	case OpRename, OpRename2:
		return "RENAME"
	case OpLink:
		return "LINK"
	case OpOpen:
		return "OPEN"
	case OpRead:
		return "READ"
	case OpWrite:
		return "WRITE"
	case OpStatfs:
		return "STATFS"
	case OpRelease:
		return "RELEASE"
	case OpFsync:
		return "FSYNC"
	case OpSetxattr:
		return "SETXATTR"
	case OpGetxattr:
		return "GETXATTR"
	case OpListxattr:
		return "LISTXATTR"
	case OpRemovexattr:
		return "REMOVEXATTR"
	case OpFlush:
		return "FLUSH"
	case OpInit:
		return "INIT"
	case OpOpendir:
		return "OPENDIR"
	case OpReaddir:
		return "READDIR"
	case OpReleasedir:
		return "RELEASEDIR"
	case OpFsyncdir:
		return "FSYNCDIR"
	case OpAccess:
		return "ACCESS"
	case OpCreate:
		return "CREATE"
	case OpInterrupt:
		return "INTERRUPT"
	case OpDestroy:
		return "DESTROY"
	case OpIoctl:
		return "IOCTL"
	case OpPoll:
		return "POLL"
	case OpBatchForget:
		return "BATCH_FORGET"
	case OpFallocate:
		return "FALLOCATE"
	case OpReaddirplus:
		return "READDIRPLUS"
	case OpLseek:
		return "LSEEK"
	case OpCopyFileRange:
		return "COPY_FILE_RANGE"
	default:
		return "OPCODE_" + itoa(int(o))
	}
}

// Init capability flags (FUSE_*), a subset of linux/fuse.h sufficient for a
// core that does not attempt writeback caching or readdirplus by default.
const (
	InitAsyncRead     = 1 << 0
	InitPosixLocks    = 1 << 1
	InitFileOps       = 1 << 2
	InitAtomicOTrunc  = 1 << 3
	InitExportSupport = 1 << 4
	InitBigWrites     = 1 << 5
	InitDontMask      = 1 << 6
	InitSpliceWrite   = 1 << 7
	InitSpliceMove    = 1 << 8
	InitSpliceRead    = 1 << 9
	InitFlockLocks    = 1 << 10
	InitHasIoctlDir   = 1 << 11
	InitAutoInvalData = 1 << 12
	InitDoReaddirplus = 1 << 13
	InitReaddirplusAuto = 1 << 14
	InitAsyncDIO      = 1 << 15
	InitWritebackCache = 1 << 16
	InitNoOpenSupport = 1 << 17
	InitParallelDirops = 1 << 18
	InitHandleKillpriv = 1 << 19
	InitPosixACL      = 1 << 20
	InitAbortError    = 1 << 21
	InitMaxPages      = 1 << 22
	InitCacheSymlinks = 1 << 23
	InitNoOpendirSupport = 1 << 24
	InitExplicitInvalData = 1 << 25
)

// FATTR bits identify which fields of a SETATTR request are meaningful.
const (
	FattrMode     = 1 << 0
	FattrUid      = 1 << 1
	FattrGid      = 1 << 2
	FattrSize     = 1 << 3
	FattrAtime    = 1 << 4
	FattrMtime    = 1 << 5
	FattrFh       = 1 << 6
	FattrAtimeNow = 1 << 7
	FattrMtimeNow = 1 << 8
	FattrLockOwner = 1 << 9
	FattrCtime    = 1 << 10
)

// FOPEN bits are returned by Open/Create in OpenOut.Flags.
const (
	FopenDirectIO   = 1 << 0
	FopenKeepCache  = 1 << 1
	FopenNonseekable = 1 << 2
)

// Release/flush flags.
const (
	ReleaseFlush     = 1 << 0
	ReleaseFlockUnlock = 1 << 1
)

// WriteOut flags.
const (
	WriteCache   = 1 << 0
	WriteLockOwner = 1 << 1
)

// XATTR request flags.
const (
	XattrCreate  = 1
	XattrReplace = 2
)

// RenameFlags mirrors the RENAME2 ioctl flag bits, identical in value to
// fuseops.RenameFlags.
const (
	RenameNoReplace = 1 << 0
	RenameExchange  = 1 << 1
	RenameWhiteout  = 1 << 2
)

////////////////////////////////////////////////////////////////////////
// Wire structures
//
// Every struct below is laid out to match the kernel's C structure exactly:
// field order and widths matter because the codec casts a []byte directly
// onto these types with unsafe.Pointer. Padding is spelled out explicitly
// rather than left to the compiler so the layout does not depend on GOARCH.
////////////////////////////////////////////////////////////////////////

type Attr struct {
	Ino       uint64
	Size      uint64
	Blocks    uint64
	Atime     uint64
	Mtime     uint64
	Ctime     uint64
	AtimeNsec uint32
	MtimeNsec uint32
	CtimeNsec uint32
	Mode      uint32
	Nlink     uint32
	Uid       uint32
	Gid       uint32
	Rdev      uint32
	Blksize   uint32
	padding   uint32
}

const AttrSize = int(unsafe.Sizeof(Attr{}))

type InHeader struct {
	Len     uint32
	Opcode  Opcode
	Unique  uint64
	NodeID  uint64
	UID     uint32
	GID     uint32
	PID     uint32
	padding uint32
}

const InHeaderSize = int(unsafe.Sizeof(InHeader{}))

type OutHeader struct {
	Len    uint32
	Error  int32
	Unique uint64
}

const OutHeaderSize = int(unsafe.Sizeof(OutHeader{}))

type InitIn struct {
	Major        uint32
	Minor        uint32
	MaxReadahead uint32
	Flags        uint32
}

const InitInSize = int(unsafe.Sizeof(InitIn{}))

type InitOut struct {
	Major               uint32
	Minor               uint32
	MaxReadahead        uint32
	Flags               uint32
	MaxBackground       uint16
	CongestionThreshold uint16
	MaxWrite            uint32
	TimeGran            uint32
	MaxPages            uint16
	padding             uint16
	Unused              [8]uint32
}

const InitOutSize = int(unsafe.Sizeof(InitOut{}))

type EntryOut struct {
	Nodeid         uint64
	Generation     uint64
	EntryValid     uint64
	AttrValid      uint64
	EntryValidNsec uint32
	AttrValidNsec  uint32
	Attr           Attr
}

const EntryOutSize = int(unsafe.Sizeof(EntryOut{}))

type AttrOut struct {
	AttrValid     uint64
	AttrValidNsec uint32
	Dummy         uint32
	Attr          Attr
}

const AttrOutSize = int(unsafe.Sizeof(AttrOut{}))

type OpenOut struct {
	Fh        uint64
	OpenFlags uint32
	padding   uint32
}

const OpenOutSize = int(unsafe.Sizeof(OpenOut{}))

type WriteOut struct {
	Size    uint32
	padding uint32
}

const WriteOutSize = int(unsafe.Sizeof(WriteOut{}))

type StatfsOut struct {
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Files   uint64
	Ffree   uint64
	Bsize   uint32
	Namelen uint32
	Frsize  uint32
	padding uint32
	Spare   [6]uint32
}

const StatfsOutSize = int(unsafe.Sizeof(StatfsOut{}))

type GetxattrOut struct {
	Size    uint32
	padding uint32
}

const GetxattrOutSize = int(unsafe.Sizeof(GetxattrOut{}))

type LkOut struct {
	Lk FileLock
}

type FileLock struct {
	Start uint64
	End   uint64
	Type  uint32
	PID   uint32
}

const LkOutSize = int(unsafe.Sizeof(LkOut{}))

type InterruptIn struct {
	Unique uint64
}

const InterruptInSize = int(unsafe.Sizeof(InterruptIn{}))

type GetattrIn struct {
	Flags   uint32
	Dummy   uint32
	Fh      uint64
}

const GetattrInSize = int(unsafe.Sizeof(GetattrIn{}))

// GetattrFh, set in GetattrIn.Flags, means Fh is valid.
const GetattrFh = 1 << 0

type SetattrIn struct {
	Valid     uint32
	padding   uint32
	Fh        uint64
	Size      uint64
	LockOwner uint64
	Atime     uint64
	Mtime     uint64
	Ctime     uint64
	AtimeNsec uint32
	MtimeNsec uint32
	CtimeNsec uint32
	Mode      uint32
	unused4   uint32
	Uid       uint32
	Gid       uint32
	unused5   uint32
}

const SetattrInSize = int(unsafe.Sizeof(SetattrIn{}))

type MknodIn struct {
	Mode    uint32
	Rdev    uint32
	Umask   uint32
	padding uint32
}

const MknodInSize = int(unsafe.Sizeof(MknodIn{}))

type MkdirIn struct {
	Mode  uint32
	Umask uint32
}

const MkdirInSize = int(unsafe.Sizeof(MkdirIn{}))

type RenameIn struct {
	Newdir uint64
}

const RenameInSize = int(unsafe.Sizeof(RenameIn{}))

type Rename2In struct {
	Newdir  uint64
	Flags   uint32
	padding uint32
}

const Rename2InSize = int(unsafe.Sizeof(Rename2In{}))

type LinkIn struct {
	Oldnodeid uint64
}

const LinkInSize = int(unsafe.Sizeof(LinkIn{}))

type OpenIn struct {
	Flags  uint32
	Unused uint32
}

const OpenInSize = int(unsafe.Sizeof(OpenIn{}))

type CreateIn struct {
	Flags   uint32
	Mode    uint32
	Umask   uint32
	padding uint32
}

const CreateInSize = int(unsafe.Sizeof(CreateIn{}))

type ReadIn struct {
	Fh        uint64
	Offset    uint64
	Size      uint32
	ReadFlags uint32
	LockOwner uint64
	Flags     uint32
	padding   uint32
}

const ReadInSize = int(unsafe.Sizeof(ReadIn{}))

type WriteIn struct {
	Fh         uint64
	Offset     uint64
	Size       uint32
	WriteFlags uint32
	LockOwner  uint64
	Flags      uint32
	padding    uint32
}

const WriteInSize = int(unsafe.Sizeof(WriteIn{}))

type ReleaseIn struct {
	Fh           uint64
	Flags        uint32
	ReleaseFlags uint32
	LockOwner    uint64
}

const ReleaseInSize = int(unsafe.Sizeof(ReleaseIn{}))

type FlushIn struct {
	Fh        uint64
	Unused    uint32
	padding   uint32
	LockOwner uint64
}

const FlushInSize = int(unsafe.Sizeof(FlushIn{}))

type FsyncIn struct {
	Fh         uint64
	FsyncFlags uint32
	padding    uint32
}

const FsyncInSize = int(unsafe.Sizeof(FsyncIn{}))

type SetxattrIn struct {
	Size    uint32
	Flags   uint32
}

const SetxattrInSize = int(unsafe.Sizeof(SetxattrIn{}))

type GetxattrIn struct {
	Size    uint32
	padding uint32
}

const GetxattrInSize = int(unsafe.Sizeof(GetxattrIn{}))

type AccessIn struct {
	Mask    uint32
	padding uint32
}

const AccessInSize = int(unsafe.Sizeof(AccessIn{}))

type ForgetIn struct {
	Nlookup uint64
}

const ForgetInSize = int(unsafe.Sizeof(ForgetIn{}))

type ForgetOne struct {
	Nodeid  uint64
	Nlookup uint64
}

const ForgetOneSize = int(unsafe.Sizeof(ForgetOne{}))

type BatchForgetIn struct {
	Count   uint32
	padding uint32
}

const BatchForgetInSize = int(unsafe.Sizeof(BatchForgetIn{}))

type IoctlIn struct {
	Fh      uint64
	Flags   uint32
	Cmd     uint32
	Arg     uint64
	InSize  uint32
	OutSize uint32
}

const IoctlInSize = int(unsafe.Sizeof(IoctlIn{}))

type IoctlOut struct {
	Result  int32
	Flags   uint32
	InIovs  uint32
	OutIovs uint32
}

const IoctlOutSize = int(unsafe.Sizeof(IoctlOut{}))

type LseekIn struct {
	Fh     uint64
	Offset uint64
	Whence uint32
	padding uint32
}

const LseekInSize = int(unsafe.Sizeof(LseekIn{}))

type LseekOut struct {
	Offset uint64
}

const LseekOutSize = int(unsafe.Sizeof(LseekOut{}))

type FallocateIn struct {
	Fh      uint64
	Offset  uint64
	Length  uint64
	Mode    uint32
	padding uint32
}

const FallocateInSize = int(unsafe.Sizeof(FallocateIn{}))

type CopyFileRangeIn struct {
	FhIn    uint64
	OffIn   uint64
	NodeidOut uint64
	FhOut   uint64
	OffOut  uint64
	Len     uint64
	Flags   uint64
}

const CopyFileRangeInSize = int(unsafe.Sizeof(CopyFileRangeIn{}))

type Dirent struct {
	Ino     uint64
	Off     uint64
	Namelen uint32
	Type    uint32
	// Name follows, not NUL-terminated, padded to an 8-byte boundary.
}

const DirentSize = int(unsafe.Sizeof(Dirent{}))
