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

import "context"

// HandlerTable is a plain struct of optional handler functions, one field
// per FUSE operation. A nil field means the operation is not implemented by
// this file system; the wrapper layer reports ErrNoSys to the kernel without
// ever calling into a handler for it.
//
// Every field has the shape
//
//	func(ctx context.Context, req *XRequest) (*XResponse, error)
//
// ctx is canceled when the kernel sends an INTERRUPT for the request's
// unique ID, or when the request's deadline (if any) elapses; handlers that
// perform blocking I/O should select on ctx.Done().
type HandlerTable struct {
	Init func(ctx context.Context, req *InitRequest) (*InitResponse, error)

	LookUpInode func(ctx context.Context, req *LookUpInodeRequest) (*LookUpInodeResponse, error)
	GetInodeAttributes func(ctx context.Context, req *GetInodeAttributesRequest) (*GetInodeAttributesResponse, error)
	SetInodeAttributes func(ctx context.Context, req *SetInodeAttributesRequest) (*SetInodeAttributesResponse, error)
	Chmod    func(ctx context.Context, req *ChmodRequest) (*ChmodResponse, error)
	Chown    func(ctx context.Context, req *ChownRequest) (*ChownResponse, error)
	Truncate func(ctx context.Context, req *TruncateRequest) (*TruncateResponse, error)
	ForgetInode func(ctx context.Context, req *ForgetInodeRequest) (*ForgetInodeResponse, error)
	ForgetMulti func(ctx context.Context, req *ForgetMultiRequest) (*ForgetMultiResponse, error)

	MkDir          func(ctx context.Context, req *MkDirRequest) (*MkDirResponse, error)
	MkNod          func(ctx context.Context, req *MkNodRequest) (*MkNodResponse, error)
	CreateFile     func(ctx context.Context, req *CreateFileRequest) (*CreateFileResponse, error)
	CreateSymlink  func(ctx context.Context, req *CreateSymlinkRequest) (*CreateSymlinkResponse, error)
	CreateLink     func(ctx context.Context, req *CreateLinkRequest) (*CreateLinkResponse, error)

	RmDir  func(ctx context.Context, req *RmDirRequest) (*RmDirResponse, error)
	Unlink func(ctx context.Context, req *UnlinkRequest) (*UnlinkResponse, error)
	Rename func(ctx context.Context, req *RenameRequest) (*RenameResponse, error)

	OpenDir          func(ctx context.Context, req *OpenDirRequest) (*OpenDirResponse, error)
	ReadDir          func(ctx context.Context, req *ReadDirRequest) (*ReadDirResponse, error)
	ReleaseDirHandle func(ctx context.Context, req *ReleaseDirHandleRequest) (*ReleaseDirHandleResponse, error)

	OpenFile          func(ctx context.Context, req *OpenFileRequest) (*OpenFileResponse, error)
	ReadFile          func(ctx context.Context, req *ReadFileRequest) (*ReadFileResponse, error)
	WriteFile         func(ctx context.Context, req *WriteFileRequest) (*WriteFileResponse, error)
	SyncFile          func(ctx context.Context, req *SyncFileRequest) (*SyncFileResponse, error)
	FlushFile         func(ctx context.Context, req *FlushFileRequest) (*FlushFileResponse, error)
	ReleaseFileHandle func(ctx context.Context, req *ReleaseFileHandleRequest) (*ReleaseFileHandleResponse, error)
	ReadSymlink       func(ctx context.Context, req *ReadSymlinkRequest) (*ReadSymlinkResponse, error)

	StatFS func(ctx context.Context, req *StatFSRequest) (*StatFSResponse, error)
	Access func(ctx context.Context, req *AccessRequest) (*AccessResponse, error)

	GetXattr    func(ctx context.Context, req *GetXattrRequest) (*GetXattrResponse, error)
	ListXattr   func(ctx context.Context, req *ListXattrRequest) (*ListXattrResponse, error)
	SetXattr    func(ctx context.Context, req *SetXattrRequest) (*SetXattrResponse, error)
	RemoveXattr func(ctx context.Context, req *RemoveXattrRequest) (*RemoveXattrResponse, error)

	CopyFileRange func(ctx context.Context, req *CopyFileRangeRequest) (*CopyFileRangeResponse, error)
	Fallocate     func(ctx context.Context, req *FallocateRequest) (*FallocateResponse, error)
	Lseek         func(ctx context.Context, req *LseekRequest) (*LseekResponse, error)
	Ioctl         func(ctx context.Context, req *IoctlRequest) (*IoctlResponse, error)
	Poll          func(ctx context.Context, req *PollRequest) (*PollResponse, error)
	Flock         func(ctx context.Context, req *FlockRequest) (*FlockResponse, error)
}
