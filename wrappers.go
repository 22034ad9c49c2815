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
	"context"
	"fmt"

	"github.com/dispatchfs/fuse/fuseops"
)

// invoke is the path every operation wrapper below funnels through:
// missing-handler detection (ErrNoSys), request validation, interruption-
// aware execution of the handler, and result-shape validation of whatever
// it returns. A handler table that never sets a field behaves exactly as
// though the file system doesn't support that operation; a handler that
// returns a malformed response is treated as a programming error at the
// handler boundary and reported to the kernel as EIO rather than trusted.
func invoke[Req any, Resp any](
	ctx context.Context,
	handler func(context.Context, *Req) (*Resp, error),
	req *Req,
	validateReq func(*Req) error,
	validateResp func(*Resp) error,
) (*Resp, error) {
	if handler == nil {
		return nil, fuseops.ErrNoSys
	}

	if validateReq != nil {
		if err := validateReq(req); err != nil {
			return nil, fuseops.ToErrno(err)
		}
	}

	resp, err := raceHandler(ctx, func() (*Resp, error) {
		return handler(ctx, req)
	})
	if err != nil {
		return nil, fuseops.ToErrno(err)
	}

	if resp == nil {
		return nil, fuseops.ErrIO
	}

	if validateResp != nil {
		if err := validateResp(resp); err != nil {
			return nil, fuseops.ErrIO
		}
	}

	return resp, nil
}

func defaultTimeout(t *float64) {
	if *t == 0 {
		*t = 1.0
	}
}

func validEntry(e *fuseops.ChildInodeEntry) error {
	defaultTimeout(&e.EntryTimeout)
	defaultTimeout(&e.AttrTimeout)
	if !e.Valid() {
		return fmt.Errorf("malformed child inode entry")
	}
	return fuseops.ValidateTimeout(e.EntryTimeout)
}

////////////////////////////////////////////////////////////////////////
// Mount lifecycle
////////////////////////////////////////////////////////////////////////

func (d *dispatcher) init(ctx context.Context, req *fuseops.InitRequest) (*fuseops.InitResponse, error) {
	return invoke(ctx, d.handlers.Init, req, nil, nil)
}

////////////////////////////////////////////////////////////////////////
// Lookup & attributes
////////////////////////////////////////////////////////////////////////

func (d *dispatcher) lookUpInode(ctx context.Context, req *fuseops.LookUpInodeRequest) (*fuseops.LookUpInodeResponse, error) {
	return invoke(ctx, d.handlers.LookUpInode, req,
		func(r *fuseops.LookUpInodeRequest) error { return fuseops.ValidateName(r.Name) },
		func(r *fuseops.LookUpInodeResponse) error { return validEntry(&r.Entry) })
}

func (d *dispatcher) getInodeAttributes(ctx context.Context, req *fuseops.GetInodeAttributesRequest) (*fuseops.GetInodeAttributesResponse, error) {
	return invoke(ctx, d.handlers.GetInodeAttributes, req, nil,
		func(r *fuseops.GetInodeAttributesResponse) error {
			defaultTimeout(&r.Timeout)
			if !r.Attr.Valid() {
				return fmt.Errorf("malformed attributes")
			}
			return fuseops.ValidateTimeout(r.Timeout)
		})
}

func (d *dispatcher) setInodeAttributes(ctx context.Context, req *fuseops.SetInodeAttributesRequest) (*fuseops.SetInodeAttributesResponse, error) {
	return invoke(ctx, d.handlers.SetInodeAttributes, req, nil,
		func(r *fuseops.SetInodeAttributesResponse) error {
			defaultTimeout(&r.Timeout)
			if !r.Attr.Valid() {
				return fmt.Errorf("malformed attributes")
			}
			return nil
		})
}

func (d *dispatcher) chmod(ctx context.Context, req *fuseops.ChmodRequest) (*fuseops.ChmodResponse, error) {
	return invoke(ctx, d.handlers.Chmod, req, nil,
		func(r *fuseops.ChmodResponse) error {
			defaultTimeout(&r.Timeout)
			if !r.Attr.Valid() {
				return fmt.Errorf("malformed attributes")
			}
			return nil
		})
}

func (d *dispatcher) chown(ctx context.Context, req *fuseops.ChownRequest) (*fuseops.ChownResponse, error) {
	return invoke(ctx, d.handlers.Chown, req, nil,
		func(r *fuseops.ChownResponse) error {
			defaultTimeout(&r.Timeout)
			if !r.Attr.Valid() {
				return fmt.Errorf("malformed attributes")
			}
			return nil
		})
}

func (d *dispatcher) truncate(ctx context.Context, req *fuseops.TruncateRequest) (*fuseops.TruncateResponse, error) {
	return invoke(ctx, d.handlers.Truncate, req,
		func(r *fuseops.TruncateRequest) error { return fuseops.ValidateSize64(r.Size) },
		func(r *fuseops.TruncateResponse) error {
			defaultTimeout(&r.Timeout)
			if !r.Attr.Valid() {
				return fmt.Errorf("malformed attributes")
			}
			return nil
		})
}

func (d *dispatcher) forgetInode(ctx context.Context, req *fuseops.ForgetInodeRequest) (*fuseops.ForgetInodeResponse, error) {
	return invoke(ctx, d.handlers.ForgetInode, req, nil, nil)
}

func (d *dispatcher) forgetMulti(ctx context.Context, req *fuseops.ForgetMultiRequest) (*fuseops.ForgetMultiResponse, error) {
	return invoke(ctx, d.handlers.ForgetMulti, req, nil, nil)
}

////////////////////////////////////////////////////////////////////////
// Inode creation
////////////////////////////////////////////////////////////////////////

func (d *dispatcher) mkDir(ctx context.Context, req *fuseops.MkDirRequest) (*fuseops.MkDirResponse, error) {
	return invoke(ctx, d.handlers.MkDir, req,
		func(r *fuseops.MkDirRequest) error { return fuseops.ValidateName(r.Name) },
		func(r *fuseops.MkDirResponse) error { return validEntry(&r.Entry) })
}

func (d *dispatcher) mkNod(ctx context.Context, req *fuseops.MkNodRequest) (*fuseops.MkNodResponse, error) {
	return invoke(ctx, d.handlers.MkNod, req,
		func(r *fuseops.MkNodRequest) error { return fuseops.ValidateName(r.Name) },
		func(r *fuseops.MkNodResponse) error { return validEntry(&r.Entry) })
}

func (d *dispatcher) createFile(ctx context.Context, req *fuseops.CreateFileRequest) (*fuseops.CreateFileResponse, error) {
	return invoke(ctx, d.handlers.CreateFile, req,
		func(r *fuseops.CreateFileRequest) error { return fuseops.ValidateName(r.Name) },
		func(r *fuseops.CreateFileResponse) error { return validEntry(&r.Entry) })
}

func (d *dispatcher) createSymlink(ctx context.Context, req *fuseops.CreateSymlinkRequest) (*fuseops.CreateSymlinkResponse, error) {
	return invoke(ctx, d.handlers.CreateSymlink, req,
		func(r *fuseops.CreateSymlinkRequest) error { return fuseops.ValidateName(r.Name) },
		func(r *fuseops.CreateSymlinkResponse) error { return validEntry(&r.Entry) })
}

func (d *dispatcher) createLink(ctx context.Context, req *fuseops.CreateLinkRequest) (*fuseops.CreateLinkResponse, error) {
	return invoke(ctx, d.handlers.CreateLink, req,
		func(r *fuseops.CreateLinkRequest) error { return fuseops.ValidateName(r.Name) },
		func(r *fuseops.CreateLinkResponse) error { return validEntry(&r.Entry) })
}

////////////////////////////////////////////////////////////////////////
// Unlinking, renaming
////////////////////////////////////////////////////////////////////////

func (d *dispatcher) rmDir(ctx context.Context, req *fuseops.RmDirRequest) (*fuseops.RmDirResponse, error) {
	return invoke(ctx, d.handlers.RmDir, req,
		func(r *fuseops.RmDirRequest) error { return fuseops.ValidateName(r.Name) }, nil)
}

func (d *dispatcher) unlink(ctx context.Context, req *fuseops.UnlinkRequest) (*fuseops.UnlinkResponse, error) {
	return invoke(ctx, d.handlers.Unlink, req,
		func(r *fuseops.UnlinkRequest) error { return fuseops.ValidateName(r.Name) }, nil)
}

func (d *dispatcher) rename(ctx context.Context, req *fuseops.RenameRequest) (*fuseops.RenameResponse, error) {
	return invoke(ctx, d.handlers.Rename, req,
		func(r *fuseops.RenameRequest) error {
			if err := fuseops.ValidateName(r.OldName); err != nil {
				return err
			}
			if err := fuseops.ValidateName(r.NewName); err != nil {
				return err
			}
			return r.Flags.Validate()
		}, nil)
}

////////////////////////////////////////////////////////////////////////
// Directory handles
////////////////////////////////////////////////////////////////////////

func (d *dispatcher) openDir(ctx context.Context, req *fuseops.OpenDirRequest) (*fuseops.OpenDirResponse, error) {
	return invoke(ctx, d.handlers.OpenDir, req, nil, nil)
}

func (d *dispatcher) readDir(ctx context.Context, req *fuseops.ReadDirRequest) (*fuseops.ReadDirResponse, error) {
	return invoke(ctx, d.handlers.ReadDir, req,
		func(r *fuseops.ReadDirRequest) error { return fuseops.ValidateOffsetSize(int64(r.Offset), int64(r.Size)) },
		func(r *fuseops.ReadDirResponse) error {
			var prev fuseops.DirOffset
			for i, e := range r.Entries {
				if i > 0 && e.Offset <= prev {
					return fmt.Errorf("dirent offsets not strictly increasing")
				}
				prev = e.Offset
			}
			return nil
		})
}

func (d *dispatcher) releaseDirHandle(ctx context.Context, req *fuseops.ReleaseDirHandleRequest) (*fuseops.ReleaseDirHandleResponse, error) {
	return invoke(ctx, d.handlers.ReleaseDirHandle, req, nil, nil)
}

////////////////////////////////////////////////////////////////////////
// File handles
////////////////////////////////////////////////////////////////////////

func (d *dispatcher) openFile(ctx context.Context, req *fuseops.OpenFileRequest) (*fuseops.OpenFileResponse, error) {
	return invoke(ctx, d.handlers.OpenFile, req, nil, nil)
}

func (d *dispatcher) readFile(ctx context.Context, req *fuseops.ReadFileRequest) (*fuseops.ReadFileResponse, error) {
	return invoke(ctx, d.handlers.ReadFile, req,
		func(r *fuseops.ReadFileRequest) error { return fuseops.ValidateOffsetSize(r.Offset, int64(r.Size)) },
		func(r *fuseops.ReadFileResponse) error {
			if len(r.Data) > req.Size {
				return fmt.Errorf("handler returned more data than requested")
			}
			return nil
		})
}

func (d *dispatcher) writeFile(ctx context.Context, req *fuseops.WriteFileRequest) (*fuseops.WriteFileResponse, error) {
	return invoke(ctx, d.handlers.WriteFile, req,
		func(r *fuseops.WriteFileRequest) error { return fuseops.ValidateOffsetSize(r.Offset, int64(len(r.Data))) },
		func(r *fuseops.WriteFileResponse) error {
			if r.BytesWritten < 0 || r.BytesWritten > len(req.Data) {
				return fmt.Errorf("bytes written %d out of range [0, %d]", r.BytesWritten, len(req.Data))
			}
			return nil
		})
}

func (d *dispatcher) syncFile(ctx context.Context, req *fuseops.SyncFileRequest) (*fuseops.SyncFileResponse, error) {
	return invoke(ctx, d.handlers.SyncFile, req, nil, nil)
}

func (d *dispatcher) flushFile(ctx context.Context, req *fuseops.FlushFileRequest) (*fuseops.FlushFileResponse, error) {
	return invoke(ctx, d.handlers.FlushFile, req, nil, nil)
}

func (d *dispatcher) releaseFileHandle(ctx context.Context, req *fuseops.ReleaseFileHandleRequest) (*fuseops.ReleaseFileHandleResponse, error) {
	return invoke(ctx, d.handlers.ReleaseFileHandle, req, nil, nil)
}

func (d *dispatcher) readSymlink(ctx context.Context, req *fuseops.ReadSymlinkRequest) (*fuseops.ReadSymlinkResponse, error) {
	return invoke(ctx, d.handlers.ReadSymlink, req, nil,
		func(r *fuseops.ReadSymlinkResponse) error {
			if len(r.Target) == 0 || len(r.Target) > fuseops.MaxPathLen {
				return fmt.Errorf("symlink target length %d out of range", len(r.Target))
			}
			return nil
		})
}

////////////////////////////////////////////////////////////////////////
// Filesystem-level
////////////////////////////////////////////////////////////////////////

func (d *dispatcher) statFS(ctx context.Context, req *fuseops.StatFSRequest) (*fuseops.StatFSResponse, error) {
	return invoke(ctx, d.handlers.StatFS, req, nil, nil)
}

func (d *dispatcher) access(ctx context.Context, req *fuseops.AccessRequest) (*fuseops.AccessResponse, error) {
	return invoke(ctx, d.handlers.Access, req, nil, nil)
}

////////////////////////////////////////////////////////////////////////
// Extended attributes
////////////////////////////////////////////////////////////////////////

func (d *dispatcher) getXattr(ctx context.Context, req *fuseops.GetXattrRequest) (*fuseops.GetXattrResponse, error) {
	return invoke(ctx, d.handlers.GetXattr, req, nil,
		func(r *fuseops.GetXattrResponse) error {
			if req.Size > 0 && len(r.Data) > req.Size {
				return fmt.Errorf("xattr data longer than requested size")
			}
			return nil
		})
}

func (d *dispatcher) listXattr(ctx context.Context, req *fuseops.ListXattrRequest) (*fuseops.ListXattrResponse, error) {
	return invoke(ctx, d.handlers.ListXattr, req, nil, nil)
}

func (d *dispatcher) setXattr(ctx context.Context, req *fuseops.SetXattrRequest) (*fuseops.SetXattrResponse, error) {
	return invoke(ctx, d.handlers.SetXattr, req,
		func(r *fuseops.SetXattrRequest) error { return fuseops.ValidateName(r.Name) }, nil)
}

func (d *dispatcher) removeXattr(ctx context.Context, req *fuseops.RemoveXattrRequest) (*fuseops.RemoveXattrResponse, error) {
	return invoke(ctx, d.handlers.RemoveXattr, req,
		func(r *fuseops.RemoveXattrRequest) error { return fuseops.ValidateName(r.Name) }, nil)
}

////////////////////////////////////////////////////////////////////////
// Misc data-plane
////////////////////////////////////////////////////////////////////////

func (d *dispatcher) copyFileRange(ctx context.Context, req *fuseops.CopyFileRangeRequest) (*fuseops.CopyFileRangeResponse, error) {
	return invoke(ctx, d.handlers.CopyFileRange, req, nil, nil)
}

func (d *dispatcher) fallocate(ctx context.Context, req *fuseops.FallocateRequest) (*fuseops.FallocateResponse, error) {
	return invoke(ctx, d.handlers.Fallocate, req, nil, nil)
}

func (d *dispatcher) lseek(ctx context.Context, req *fuseops.LseekRequest) (*fuseops.LseekResponse, error) {
	return invoke(ctx, d.handlers.Lseek, req,
		func(r *fuseops.LseekRequest) error {
			if !r.Whence.Valid() {
				return fuseops.ErrInval
			}
			return nil
		}, nil)
}

func (d *dispatcher) ioctl(ctx context.Context, req *fuseops.IoctlRequest) (*fuseops.IoctlResponse, error) {
	return invoke(ctx, d.handlers.Ioctl, req, nil,
		func(r *fuseops.IoctlResponse) error {
			if len(r.OutData) > req.OutSize {
				return fmt.Errorf("ioctl output longer than requested size")
			}
			return nil
		})
}

func (d *dispatcher) poll(ctx context.Context, req *fuseops.PollRequest) (*fuseops.PollResponse, error) {
	return invoke(ctx, d.handlers.Poll, req, nil, nil)
}

func (d *dispatcher) flock(ctx context.Context, req *fuseops.FlockRequest) (*fuseops.FlockResponse, error) {
	return invoke(ctx, d.handlers.Flock, req, nil, nil)
}
