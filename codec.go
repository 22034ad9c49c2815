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

package fuse

import (
	"bytes"
	"context"
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/dispatchfs/fuse/fuseops"
	"github.com/dispatchfs/fuse/internal/buffer"
	"github.com/dispatchfs/fuse/internal/fusekernel"
)

// newErrno recovers an error value from the wire's negative-errno
// convention, for use with reqtrace's span-failure reporting.
func newErrno(errno int32) error {
	return syscall.Errno(errno)
}

func errnoOf(err error) int32 {
	return int32(fuseops.ToErrno(err))
}

// decoder walks a copy of a single request's post-header bytes. Unlike
// buffer.InMessage, it owns no fixed-size backing array: the run loop already
// copied the kernel's message out of the shared read buffer before handing
// it to a worker goroutine, so the decoder just slices that copy.
type decoder struct {
	b []byte
}

func (c *decoder) consume(n int) unsafe.Pointer {
	if len(c.b) < n {
		return nil
	}
	p := unsafe.Pointer(&c.b[0])
	c.b = c.b[n:]
	return p
}

func (c *decoder) bytes(n int) []byte {
	if len(c.b) < n {
		return nil
	}
	b := c.b[:n:n]
	c.b = c.b[n:]
	return b
}

func (c *decoder) cstring() string {
	if i := bytes.IndexByte(c.b, 0); i >= 0 {
		s := string(c.b[:i])
		c.b = c.b[i+1:]
		return s
	}
	s := string(c.b)
	c.b = nil
	return s
}

func (c *decoder) rest() []byte {
	return c.b
}

func splitSeconds(secs float64) (whole uint64, nsec uint32) {
	if secs < 0 {
		secs = 0
	}
	whole = uint64(secs)
	nsec = uint32((secs - float64(whole)) * 1e9)
	return
}

func toWireAttr(a fuseops.StatResult) fusekernel.Attr {
	return fusekernel.Attr{
		Ino:       uint64(a.Ino),
		Size:      a.Size,
		Blocks:    a.Blocks,
		Atime:     uint64(a.Atime.Sec),
		AtimeNsec: a.Atime.Nsec,
		Mtime:     uint64(a.Mtime.Sec),
		MtimeNsec: a.Mtime.Nsec,
		Ctime:     uint64(a.Ctime.Sec),
		CtimeNsec: a.Ctime.Nsec,
		Mode:      uint32(a.Mode),
		Nlink:     a.Nlink,
		Uid:       uint32(a.Uid),
		Gid:       uint32(a.Gid),
		Rdev:      uint32(a.Rdev),
		Blksize:   a.Blksize,
	}
}

func encodeEntryOut(om *buffer.OutMessage, e fuseops.ChildInodeEntry) {
	p := (*fusekernel.EntryOut)(om.Grow(fusekernel.EntryOutSize))
	p.Nodeid = uint64(e.Child)
	p.Generation = uint64(e.Generation)
	p.EntryValid, p.EntryValidNsec = splitSeconds(e.EntryTimeout)
	p.AttrValid, p.AttrValidNsec = splitSeconds(e.AttrTimeout)
	p.Attr = toWireAttr(e.Attr)
}

func encodeAttrOut(om *buffer.OutMessage, a fuseops.StatResult, timeout float64) {
	p := (*fusekernel.AttrOut)(om.Grow(fusekernel.AttrOutSize))
	p.AttrValid, p.AttrValidNsec = splitSeconds(timeout)
	p.Attr = toWireAttr(a)
}

// dispatch decodes body per h.Opcode, calls the matching wrapper in
// wrappers.go, and returns a func that appends the wire-format reply
// payload (nil if the reply carries only a header) along with the errno to
// report (0 on success).
func (d *dispatcher) dispatch(ctx context.Context, h fusekernel.InHeader, rc fuseops.RequestContext, body []byte) (func(*buffer.OutMessage), int32) {
	dec := &decoder{b: body}
	ino := fuseops.InodeID(h.NodeID)

	switch h.Opcode {
	case fusekernel.OpLookup:
		resp, err := d.lookUpInode(ctx, &fuseops.LookUpInodeRequest{Header: rc, Parent: ino, Name: dec.cstring()})
		if err != nil {
			return nil, errnoOf(err)
		}
		d.handles.recordLookup(resp.Entry.Child, 1)
		return func(om *buffer.OutMessage) { encodeEntryOut(om, resp.Entry) }, 0

	case fusekernel.OpGetattr:
		in := (*fusekernel.GetattrIn)(dec.consume(fusekernel.GetattrInSize))
		req := &fuseops.GetInodeAttributesRequest{Header: rc, Inode: ino}
		if in != nil && in.Flags&fusekernel.GetattrFh != 0 {
			req.Handle = fuseops.HandleID(in.Fh)
		}
		resp, err := d.getInodeAttributes(ctx, req)
		if err != nil {
			return nil, errnoOf(err)
		}
		return func(om *buffer.OutMessage) { encodeAttrOut(om, resp.Attr, resp.Timeout) }, 0

	case fusekernel.OpSetattr:
		in := (*fusekernel.SetattrIn)(dec.consume(fusekernel.SetattrInSize))
		if in == nil {
			return nil, errnoOf(fuseops.ErrInval)
		}
		attr, timeout, err := d.dispatchSetattr(ctx, rc, ino, in)
		if err != nil {
			return nil, errnoOf(err)
		}
		return func(om *buffer.OutMessage) { encodeAttrOut(om, attr, timeout) }, 0

	case fusekernel.OpReadlink:
		resp, err := d.readSymlink(ctx, &fuseops.ReadSymlinkRequest{Header: rc, Inode: ino})
		if err != nil {
			return nil, errnoOf(err)
		}
		return func(om *buffer.OutMessage) { om.AppendString(resp.Target) }, 0

	case fusekernel.OpSymlink:
		name := dec.cstring()
		target := dec.cstring()
		resp, err := d.createSymlink(ctx, &fuseops.CreateSymlinkRequest{Header: rc, Parent: ino, Name: name, Target: target})
		if err != nil {
			return nil, errnoOf(err)
		}
		d.handles.recordLookup(resp.Entry.Child, 1)
		return func(om *buffer.OutMessage) { encodeEntryOut(om, resp.Entry) }, 0

	case fusekernel.OpMknod:
		in := (*fusekernel.MknodIn)(dec.consume(fusekernel.MknodInSize))
		if in == nil {
			return nil, errnoOf(fuseops.ErrInval)
		}
		name := dec.cstring()
		resp, err := d.mkNod(ctx, &fuseops.MkNodRequest{Header: rc, Parent: ino, Name: name, Mode: fuseops.Mode(in.Mode), Rdev: fuseops.Dev(in.Rdev)})
		if err != nil {
			return nil, errnoOf(err)
		}
		d.handles.recordLookup(resp.Entry.Child, 1)
		return func(om *buffer.OutMessage) { encodeEntryOut(om, resp.Entry) }, 0

	case fusekernel.OpMkdir:
		in := (*fusekernel.MkdirIn)(dec.consume(fusekernel.MkdirInSize))
		if in == nil {
			return nil, errnoOf(fuseops.ErrInval)
		}
		name := dec.cstring()
		resp, err := d.mkDir(ctx, &fuseops.MkDirRequest{Header: rc, Parent: ino, Name: name, Mode: fuseops.Mode(in.Mode)})
		if err != nil {
			return nil, errnoOf(err)
		}
		d.handles.recordLookup(resp.Entry.Child, 1)
		return func(om *buffer.OutMessage) { encodeEntryOut(om, resp.Entry) }, 0

	case fusekernel.OpUnlink:
		_, err := d.unlink(ctx, &fuseops.UnlinkRequest{Header: rc, Parent: ino, Name: dec.cstring()})
		return nil, errnoOf(err)

	case fusekernel.OpRmdir:
		_, err := d.rmDir(ctx, &fuseops.RmDirRequest{Header: rc, Parent: ino, Name: dec.cstring()})
		return nil, errnoOf(err)

	case fusekernel.OpRename:
		in := (*fusekernel.RenameIn)(dec.consume(fusekernel.RenameInSize))
		if in == nil {
			return nil, errnoOf(fuseops.ErrInval)
		}
		oldName := dec.cstring()
		newName := dec.cstring()
		_, err := d.rename(ctx, &fuseops.RenameRequest{Header: rc, OldParent: ino, OldName: oldName, NewParent: fuseops.InodeID(in.Newdir), NewName: newName})
		return nil, errnoOf(err)

	case fusekernel.OpRename2:
		in := (*fusekernel.Rename2In)(dec.consume(fusekernel.Rename2InSize))
		if in == nil {
			return nil, errnoOf(fuseops.ErrInval)
		}
		oldName := dec.cstring()
		newName := dec.cstring()
		_, err := d.rename(ctx, &fuseops.RenameRequest{
			Header: rc, OldParent: ino, OldName: oldName,
			NewParent: fuseops.InodeID(in.Newdir), NewName: newName,
			Flags: fuseops.RenameFlags(in.Flags),
		})
		return nil, errnoOf(err)

	case fusekernel.OpLink:
		in := (*fusekernel.LinkIn)(dec.consume(fusekernel.LinkInSize))
		if in == nil {
			return nil, errnoOf(fuseops.ErrInval)
		}
		name := dec.cstring()
		resp, err := d.createLink(ctx, &fuseops.CreateLinkRequest{Header: rc, Parent: ino, Name: name, Target: fuseops.InodeID(in.Oldnodeid)})
		if err != nil {
			return nil, errnoOf(err)
		}
		d.handles.recordLookup(resp.Entry.Child, 1)
		return func(om *buffer.OutMessage) { encodeEntryOut(om, resp.Entry) }, 0

	case fusekernel.OpOpen:
		in := (*fusekernel.OpenIn)(dec.consume(fusekernel.OpenInSize))
		flags := fuseops.Flags(0)
		if in != nil {
			flags = fuseops.Flags(in.Flags)
		}
		resp, err := d.openFile(ctx, &fuseops.OpenFileRequest{Header: rc, Inode: ino, Flags: flags})
		if err != nil {
			return nil, errnoOf(err)
		}
		resp.FileInfo.Fh = d.handles.allocate()
		return func(om *buffer.OutMessage) { encodeOpenOut(om, resp.FileInfo) }, 0

	case fusekernel.OpCreate:
		in := (*fusekernel.CreateIn)(dec.consume(fusekernel.CreateInSize))
		if in == nil {
			return nil, errnoOf(fuseops.ErrInval)
		}
		name := dec.cstring()
		resp, err := d.createFile(ctx, &fuseops.CreateFileRequest{Header: rc, Parent: ino, Name: name, Mode: fuseops.Mode(in.Mode), Flags: fuseops.Flags(in.Flags)})
		if err != nil {
			return nil, errnoOf(err)
		}
		d.handles.recordLookup(resp.Entry.Child, 1)
		resp.Handle = d.handles.allocate()
		return func(om *buffer.OutMessage) {
			encodeEntryOut(om, resp.Entry)
			encodeOpenOut(om, fuseops.FileInfo{Fh: resp.Handle})
		}, 0

	case fusekernel.OpRead:
		in := (*fusekernel.ReadIn)(dec.consume(fusekernel.ReadInSize))
		if in == nil {
			return nil, errnoOf(fuseops.ErrInval)
		}
		if !d.handles.isLive(fuseops.HandleID(in.Fh)) {
			return nil, errnoOf(fuseops.ErrBadF)
		}
		resp, err := d.readFile(ctx, &fuseops.ReadFileRequest{Header: rc, Inode: ino, Handle: fuseops.HandleID(in.Fh), Offset: int64(in.Offset), Size: int(in.Size)})
		if err != nil {
			return nil, errnoOf(err)
		}
		return func(om *buffer.OutMessage) { om.Append(resp.Data) }, 0

	case fusekernel.OpWrite:
		in := (*fusekernel.WriteIn)(dec.consume(fusekernel.WriteInSize))
		if in == nil {
			return nil, errnoOf(fuseops.ErrInval)
		}
		if !d.handles.isLive(fuseops.HandleID(in.Fh)) {
			return nil, errnoOf(fuseops.ErrBadF)
		}
		data := dec.bytes(int(in.Size))
		resp, err := d.writeFile(ctx, &fuseops.WriteFileRequest{Header: rc, Inode: ino, Handle: fuseops.HandleID(in.Fh), Offset: int64(in.Offset), Data: data})
		if err != nil {
			return nil, errnoOf(err)
		}
		return func(om *buffer.OutMessage) {
			p := (*fusekernel.WriteOut)(om.Grow(fusekernel.WriteOutSize))
			p.Size = uint32(resp.BytesWritten)
		}, 0

	case fusekernel.OpStatfs:
		resp, err := d.statFS(ctx, &fuseops.StatFSRequest{Header: rc, Inode: ino})
		if err != nil {
			return nil, errnoOf(err)
		}
		return func(om *buffer.OutMessage) {
			p := (*fusekernel.StatfsOut)(om.Grow(fusekernel.StatfsOutSize))
			p.Blocks = resp.StatVfs.Blocks
			p.Bfree = resp.StatVfs.BlocksFree
			p.Bavail = resp.StatVfs.BlocksAvail
			p.Files = resp.StatVfs.Files
			p.Ffree = resp.StatVfs.FilesFree
			p.Bsize = resp.StatVfs.BlockSize
			p.Namelen = resp.StatVfs.MaxNameLen
			p.Frsize = resp.StatVfs.FragSize
		}, 0

	case fusekernel.OpRelease:
		in := (*fusekernel.ReleaseIn)(dec.consume(fusekernel.ReleaseInSize))
		if in == nil {
			return nil, errnoOf(fuseops.ErrInval)
		}
		if !d.handles.isLive(fuseops.HandleID(in.Fh)) {
			return nil, errnoOf(fuseops.ErrBadF)
		}
		d.handles.release(fuseops.HandleID(in.Fh))
		_, err := d.releaseFileHandle(ctx, &fuseops.ReleaseFileHandleRequest{Header: rc, Inode: ino, Handle: fuseops.HandleID(in.Fh)})
		return nil, errnoOf(err)

	case fusekernel.OpFsync:
		in := (*fusekernel.FsyncIn)(dec.consume(fusekernel.FsyncInSize))
		fh := fuseops.HandleID(0)
		if in != nil {
			fh = fuseops.HandleID(in.Fh)
			if !d.handles.isLive(fh) {
				return nil, errnoOf(fuseops.ErrBadF)
			}
		}
		_, err := d.syncFile(ctx, &fuseops.SyncFileRequest{Header: rc, Inode: ino, Handle: fh})
		return nil, errnoOf(err)

	case fusekernel.OpFlush:
		in := (*fusekernel.FlushIn)(dec.consume(fusekernel.FlushInSize))
		fh := fuseops.HandleID(0)
		if in != nil {
			fh = fuseops.HandleID(in.Fh)
			if !d.handles.isLive(fh) {
				return nil, errnoOf(fuseops.ErrBadF)
			}
		}
		_, err := d.flushFile(ctx, &fuseops.FlushFileRequest{Header: rc, Inode: ino, Handle: fh})
		return nil, errnoOf(err)

	case fusekernel.OpSetxattr:
		in := (*fusekernel.SetxattrIn)(dec.consume(fusekernel.SetxattrInSize))
		if in == nil {
			return nil, errnoOf(fuseops.ErrInval)
		}
		name := dec.cstring()
		value := dec.bytes(int(in.Size))
		_, err := d.setXattr(ctx, &fuseops.SetXattrRequest{Header: rc, Inode: ino, Name: name, Value: value, Flags: fuseops.Flags(in.Flags)})
		return nil, errnoOf(err)

	case fusekernel.OpGetxattr:
		in := (*fusekernel.GetxattrIn)(dec.consume(fusekernel.GetxattrInSize))
		if in == nil {
			return nil, errnoOf(fuseops.ErrInval)
		}
		name := dec.cstring()
		resp, err := d.getXattr(ctx, &fuseops.GetXattrRequest{Header: rc, Inode: ino, Name: name, Size: int(in.Size)})
		if err != nil {
			return nil, errnoOf(err)
		}
		if in.Size == 0 {
			return func(om *buffer.OutMessage) {
				p := (*fusekernel.GetxattrOut)(om.Grow(fusekernel.GetxattrOutSize))
				p.Size = uint32(resp.Size)
			}, 0
		}
		return func(om *buffer.OutMessage) { om.Append(resp.Data) }, 0

	case fusekernel.OpListxattr:
		in := (*fusekernel.GetxattrIn)(dec.consume(fusekernel.GetxattrInSize))
		if in == nil {
			return nil, errnoOf(fuseops.ErrInval)
		}
		resp, err := d.listXattr(ctx, &fuseops.ListXattrRequest{Header: rc, Inode: ino, Size: int(in.Size)})
		if err != nil {
			return nil, errnoOf(err)
		}
		joined := joinNames(resp.Names)
		if in.Size == 0 {
			size := len(joined)
			if resp.Names == nil {
				size = resp.Size
			}
			return func(om *buffer.OutMessage) {
				p := (*fusekernel.GetxattrOut)(om.Grow(fusekernel.GetxattrOutSize))
				p.Size = uint32(size)
			}, 0
		}
		return func(om *buffer.OutMessage) { om.Append(joined) }, 0

	case fusekernel.OpRemovexattr:
		_, err := d.removeXattr(ctx, &fuseops.RemoveXattrRequest{Header: rc, Inode: ino, Name: dec.cstring()})
		return nil, errnoOf(err)

	case fusekernel.OpOpendir:
		in := (*fusekernel.OpenIn)(dec.consume(fusekernel.OpenInSize))
		flags := fuseops.Flags(0)
		if in != nil {
			flags = fuseops.Flags(in.Flags)
		}
		resp, err := d.openDir(ctx, &fuseops.OpenDirRequest{Header: rc, Inode: ino, Flags: flags})
		if err != nil {
			return nil, errnoOf(err)
		}
		resp.Handle = d.handles.allocate()
		return func(om *buffer.OutMessage) { encodeOpenOut(om, fuseops.FileInfo{Fh: resp.Handle}) }, 0

	case fusekernel.OpReaddir, fusekernel.OpReaddirplus:
		in := (*fusekernel.ReadIn)(dec.consume(fusekernel.ReadInSize))
		if in == nil {
			return nil, errnoOf(fuseops.ErrInval)
		}
		if !d.handles.isLive(fuseops.HandleID(in.Fh)) {
			return nil, errnoOf(fuseops.ErrBadF)
		}
		resp, err := d.readDir(ctx, &fuseops.ReadDirRequest{Header: rc, Inode: ino, Handle: fuseops.HandleID(in.Fh), Offset: fuseops.DirOffset(in.Offset), Size: int(in.Size)})
		if err != nil {
			return nil, errnoOf(err)
		}
		return func(om *buffer.OutMessage) { encodeDirents(om, resp.Entries) }, 0

	case fusekernel.OpReleasedir:
		in := (*fusekernel.ReleaseIn)(dec.consume(fusekernel.ReleaseInSize))
		if in == nil {
			return nil, errnoOf(fuseops.ErrInval)
		}
		if !d.handles.isLive(fuseops.HandleID(in.Fh)) {
			return nil, errnoOf(fuseops.ErrBadF)
		}
		d.handles.release(fuseops.HandleID(in.Fh))
		_, err := d.releaseDirHandle(ctx, &fuseops.ReleaseDirHandleRequest{Header: rc, Inode: ino, Handle: fuseops.HandleID(in.Fh)})
		return nil, errnoOf(err)

	case fusekernel.OpFsyncdir:
		return nil, 0

	case fusekernel.OpAccess:
		in := (*fusekernel.AccessIn)(dec.consume(fusekernel.AccessInSize))
		mask := uint32(0)
		if in != nil {
			mask = in.Mask
		}
		_, err := d.access(ctx, &fuseops.AccessRequest{Header: rc, Inode: ino, Mask: mask})
		return nil, errnoOf(err)

	case fusekernel.OpFallocate:
		in := (*fusekernel.FallocateIn)(dec.consume(fusekernel.FallocateInSize))
		if in == nil {
			return nil, errnoOf(fuseops.ErrInval)
		}
		_, err := d.fallocate(ctx, &fuseops.FallocateRequest{Header: rc, Inode: ino, Handle: fuseops.HandleID(in.Fh), Mode: in.Mode, Offset: int64(in.Offset), Length: int64(in.Length)})
		return nil, errnoOf(err)

	case fusekernel.OpLseek:
		in := (*fusekernel.LseekIn)(dec.consume(fusekernel.LseekInSize))
		if in == nil {
			return nil, errnoOf(fuseops.ErrInval)
		}
		resp, err := d.lseek(ctx, &fuseops.LseekRequest{Header: rc, Inode: ino, Handle: fuseops.HandleID(in.Fh), Offset: int64(in.Offset), Whence: fuseops.Whence(in.Whence)})
		if err != nil {
			return nil, errnoOf(err)
		}
		return func(om *buffer.OutMessage) {
			p := (*fusekernel.LseekOut)(om.Grow(fusekernel.LseekOutSize))
			p.Offset = uint64(resp.Offset)
		}, 0

	case fusekernel.OpCopyFileRange:
		in := (*fusekernel.CopyFileRangeIn)(dec.consume(fusekernel.CopyFileRangeInSize))
		if in == nil {
			return nil, errnoOf(fuseops.ErrInval)
		}
		resp, err := d.copyFileRange(ctx, &fuseops.CopyFileRangeRequest{
			Header: rc, InodeIn: ino, OffIn: int64(in.OffIn), HandleIn: fuseops.HandleID(in.FhIn),
			InodeOut: fuseops.InodeID(in.NodeidOut), OffOut: int64(in.OffOut), HandleOut: fuseops.HandleID(in.FhOut),
			Len: in.Len, Flags: uint32(in.Flags),
		})
		if err != nil {
			return nil, errnoOf(err)
		}
		return func(om *buffer.OutMessage) {
			p := (*fusekernel.WriteOut)(om.Grow(fusekernel.WriteOutSize))
			p.Size = uint32(resp.BytesCopied)
		}, 0

	case fusekernel.OpIoctl:
		in := (*fusekernel.IoctlIn)(dec.consume(fusekernel.IoctlInSize))
		if in == nil {
			return nil, errnoOf(fuseops.ErrInval)
		}
		inData := dec.bytes(int(in.InSize))
		resp, err := d.ioctl(ctx, &fuseops.IoctlRequest{
			Header: rc, Inode: ino, Handle: fuseops.HandleID(in.Fh), Cmd: in.Cmd, Arg: in.Arg,
			Flags: in.Flags, InData: inData, OutSize: int(in.OutSize),
		})
		if err != nil {
			return nil, errnoOf(err)
		}
		return func(om *buffer.OutMessage) {
			p := (*fusekernel.IoctlOut)(om.Grow(fusekernel.IoctlOutSize))
			p.Result = resp.Result
			om.Append(resp.OutData)
		}, 0

	case fusekernel.OpPoll:
		resp, err := d.poll(ctx, &fuseops.PollRequest{Header: rc, Inode: ino})
		if err != nil {
			return nil, errnoOf(err)
		}
		return func(om *buffer.OutMessage) {
			p := (*pollOut)(om.Grow(int(unsafe.Sizeof(pollOut{}))))
			p.Revents = resp.Revents
		}, 0

	case fusekernel.OpSetlk, fusekernel.OpSetlkw:
		return d.dispatchFlock(ctx, rc, ino, dec, h.Opcode == fusekernel.OpSetlkw)

	default:
		return nil, errnoOf(fuseops.ErrNoSys)
	}
}

func (d *dispatcher) dispatchFlock(ctx context.Context, rc fuseops.RequestContext, ino fuseops.InodeID, dec *decoder, blocking bool) (func(*buffer.OutMessage), int32) {
	type lockIn struct {
		Fh      uint64
		Owner   uint64
		Lk      fusekernel.FileLock
		LkFlags uint32
		padding uint32
	}
	in := (*lockIn)(dec.consume(int(unsafe.Sizeof(lockIn{}))))
	if in == nil {
		return nil, errnoOf(fuseops.ErrInval)
	}

	var typ fuseops.FileLockType
	switch in.Lk.Type {
	case unix.F_RDLCK:
		typ = fuseops.LockRead
	case unix.F_WRLCK:
		typ = fuseops.LockWrite
	default:
		typ = fuseops.LockUnlock
	}

	_, err := d.flock(ctx, &fuseops.FlockRequest{
		Header: rc, Inode: ino, Handle: fuseops.HandleID(in.Fh), LockOwner: in.Owner,
		Type: typ, NonBlocking: !blocking,
	})
	return nil, errnoOf(err)
}

type pollOut struct {
	Revents uint32
	padding uint32
}

func encodeOpenOut(om *buffer.OutMessage, fi fuseops.FileInfo) {
	p := (*fusekernel.OpenOut)(om.Grow(fusekernel.OpenOutSize))
	p.Fh = uint64(fi.Fh)
	if fi.DirectIO {
		p.OpenFlags |= fusekernel.FopenDirectIO
	}
	if fi.KeepCache {
		p.OpenFlags |= fusekernel.FopenKeepCache
	}
	if fi.Nonseekable {
		p.OpenFlags |= fusekernel.FopenNonseekable
	}
}

func encodeDirents(om *buffer.OutMessage, entries []fuseops.Dirent) {
	for _, e := range entries {
		nameLen := len(e.Name)
		recLen := fusekernel.DirentSize + nameLen
		padded := (recLen + 7) &^ 7

		p := (*fusekernel.Dirent)(om.Grow(padded))
		p.Ino = uint64(e.Inode)
		p.Off = uint64(e.Offset)
		p.Namelen = uint32(nameLen)
		p.Type = uint32(e.Type)

		dst := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(unsafe.Pointer(p))+uintptr(fusekernel.DirentSize))), padded-fusekernel.DirentSize)
		copy(dst, e.Name)
		for i := nameLen; i < len(dst); i++ {
			dst[i] = 0
		}
	}
}

func joinNames(names []string) []byte {
	var buf bytes.Buffer
	for _, n := range names {
		buf.WriteString(n)
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// dispatchSetattr composes the single kernel SETATTR opcode into the
// handler table's more specific Truncate/Chown/Chmod/SetInodeAttributes
// slots, in that order, since a single request can legally touch more than
// one of those fields at once (e.g. a truncating open with O_CREAT).
// Whichever handler ran last supplies the attributes returned to the
// kernel. Every slot a request's field bits select must be set: the first
// one that is nil (or fails) ends the request with its errno, and later
// slots are not called. A request selecting none of them is answered from
// GetInodeAttributes.
func (d *dispatcher) dispatchSetattr(ctx context.Context, rc fuseops.RequestContext, ino fuseops.InodeID, in *fusekernel.SetattrIn) (fuseops.StatResult, float64, error) {
	var (
		attr    fuseops.StatResult
		timeout float64
		ran     bool
	)

	if in.Valid&fusekernel.FattrSize != 0 {
		resp, err := d.truncate(ctx, &fuseops.TruncateRequest{Header: rc, Inode: ino, Size: int64(in.Size)})
		if err != nil {
			return attr, 0, err
		}
		attr, timeout, ran = resp.Attr, resp.Timeout, true
	}

	if in.Valid&(fusekernel.FattrUid|fusekernel.FattrGid) != 0 {
		req := &fuseops.ChownRequest{Header: rc, Inode: ino}
		if in.Valid&fusekernel.FattrUid != 0 {
			uid := fuseops.Uid(in.Uid)
			req.Uid = &uid
		}
		if in.Valid&fusekernel.FattrGid != 0 {
			gid := fuseops.Gid(in.Gid)
			req.Gid = &gid
		}
		resp, err := d.chown(ctx, req)
		if err != nil {
			return attr, 0, err
		}
		attr, timeout, ran = resp.Attr, resp.Timeout, true
	}

	if in.Valid&fusekernel.FattrMode != 0 {
		resp, err := d.chmod(ctx, &fuseops.ChmodRequest{Header: rc, Inode: ino, Mode: fuseops.Mode(in.Mode)})
		if err != nil {
			return attr, 0, err
		}
		attr, timeout, ran = resp.Attr, resp.Timeout, true
	}

	if in.Valid&(fusekernel.FattrAtime|fusekernel.FattrMtime|fusekernel.FattrAtimeNow|fusekernel.FattrMtimeNow) != 0 {
		req := &fuseops.SetInodeAttributesRequest{Header: rc, Inode: ino}
		if in.Valid&fusekernel.FattrAtime != 0 {
			t := fuseops.Timestamp{Sec: int64(in.Atime), Nsec: in.AtimeNsec}
			req.Atime = &t
		}
		if in.Valid&fusekernel.FattrMtime != 0 {
			t := fuseops.Timestamp{Sec: int64(in.Mtime), Nsec: in.MtimeNsec}
			req.Mtime = &t
		}
		resp, err := d.setInodeAttributes(ctx, req)
		if err != nil {
			return attr, 0, err
		}
		attr, timeout, ran = resp.Attr, resp.Timeout, true
	}

	if !ran {
		resp, err := d.getInodeAttributes(ctx, &fuseops.GetInodeAttributesRequest{Header: rc, Inode: ino})
		if err != nil {
			return attr, 0, err
		}
		attr, timeout = resp.Attr, resp.Timeout
	}

	return attr, timeout, nil
}

////////////////////////////////////////////////////////////////////////
// Opcodes handled inline by the dispatcher loop (no goroutine, no reply
// except INIT)
////////////////////////////////////////////////////////////////////////

func (d *dispatcher) handleInit(h *fusekernel.InHeader, im *buffer.InMessage) error {
	in := (*fusekernel.InitIn)(im.Consume(uintptr(fusekernel.InitInSize)))
	if in == nil {
		return fmt.Errorf("fuse: short INIT request")
	}

	d.protocol = fusekernel.Protocol{Major: in.Major, Minor: in.Minor}
	if d.protocol.LT(fusekernel.Protocol{Major: 7, Minor: fusekernel.MinKernelMinorVersion}) {
		return fmt.Errorf("fuse: kernel protocol %s too old", d.protocol)
	}
	if in.Major > fusekernel.KernelVersion {
		return fmt.Errorf("fuse: kernel protocol %s too new, only major %d is supported", d.protocol, fusekernel.KernelVersion)
	}

	_, err := d.init(context.Background(), &fuseops.InitRequest{})
	if err != nil && err != fuseops.ErrNoSys {
		return err
	}

	var om buffer.OutMessage
	om.Reset()
	oh := om.OutHeader()
	oh.Unique = h.Unique

	out := (*fusekernel.InitOut)(om.Grow(fusekernel.InitOutSize))
	out.Major = fusekernel.KernelVersion
	out.Minor = fusekernel.KernelMinorVersion
	if d.protocol.Minor < out.Minor {
		out.Minor = in.Minor
	}
	out.MaxReadahead = in.MaxReadahead
	out.Flags = in.Flags & (fusekernel.InitBigWrites | fusekernel.InitAsyncRead | fusekernel.InitFlockLocks)
	out.MaxWrite = buffer.MaxWriteSize
	out.MaxBackground = 64
	out.CongestionThreshold = 48
	out.TimeGran = 1

	oh.Len = uint32(om.Len())
	_, err = d.dev.Write(om.Bytes())
	return err
}

func (d *dispatcher) handleForget(h *fusekernel.InHeader, im *buffer.InMessage) {
	in := (*fusekernel.ForgetIn)(im.Consume(uintptr(fusekernel.ForgetInSize)))
	if in == nil {
		return
	}
	d.forgetOne(fuseops.InodeID(h.NodeID), in.Nlookup)
}

func (d *dispatcher) handleBatchForget(h *fusekernel.InHeader, im *buffer.InMessage) {
	in := (*fusekernel.BatchForgetIn)(im.Consume(uintptr(fusekernel.BatchForgetInSize)))
	if in == nil {
		return
	}

	entries := make([]fuseops.ForgetInodeEntry, 0, in.Count)
	for i := uint32(0); i < in.Count; i++ {
		one := (*fusekernel.ForgetOne)(im.Consume(uintptr(fusekernel.ForgetOneSize)))
		if one == nil {
			break
		}
		entries = append(entries, fuseops.ForgetInodeEntry{Inode: fuseops.InodeID(one.Nodeid), Nlookup: one.Nlookup})
	}

	for _, e := range entries {
		d.handles.forget(e.Inode, e.Nlookup)
	}
	if d.handlers.ForgetMulti != nil {
		d.forgetMulti(context.Background(), &fuseops.ForgetMultiRequest{Entries: entries})
		return
	}
	for _, e := range entries {
		d.forgetInode(context.Background(), &fuseops.ForgetInodeRequest{Inode: e.Inode, Nlookup: e.Nlookup})
	}
}

func (d *dispatcher) forgetOne(ino fuseops.InodeID, n uint64) {
	d.handles.forget(ino, n)
	d.forgetInode(context.Background(), &fuseops.ForgetInodeRequest{Inode: ino, Nlookup: n})
}
