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

// Package hellofs is a fixed, read-only file system used as a test
// dependency of the dispatcher and codec packages. It looks like this:
//
//     hello
//     dir/
//         world
//
// Each file contains the string "Hello, world!".
package hellofs

import (
	"context"
	"io"
	"strings"
	"syscall"

	"github.com/jacobsa/timeutil"

	"github.com/dispatchfs/fuse/fuseops"
	"github.com/dispatchfs/fuse/fuseutil"
)

const (
	rootInode fuseops.InodeID = fuseops.RootInodeID + iota
	helloInode
	dirInode
	worldInode
)

const helloContents = "Hello, world!"

type inodeInfo struct {
	attr fuseops.StatResult

	// File or directory?
	dir bool

	// For directories, children.
	children []fuseops.Dirent
}

// We have a fixed directory structure.
var gInodeInfo = map[fuseops.InodeID]inodeInfo{
	// root
	rootInode: {
		attr: fuseops.StatResult{
			Ino:   uint64(rootInode),
			Nlink: 1,
			Mode:  fuseops.Mode(0555 | syscall.S_IFDIR),
		},
		dir: true,
		children: []fuseops.Dirent{
			{Offset: 1, Inode: helloInode, Name: "hello", Type: fuseops.DT_File},
			{Offset: 2, Inode: dirInode, Name: "dir", Type: fuseops.DT_Directory},
		},
	},

	// hello
	helloInode: {
		attr: fuseops.StatResult{
			Ino:   uint64(helloInode),
			Nlink: 1,
			Mode:  fuseops.Mode(0444 | syscall.S_IFREG),
			Size:  uint64(len(helloContents)),
		},
	},

	// dir
	dirInode: {
		attr: fuseops.StatResult{
			Ino:   uint64(dirInode),
			Nlink: 1,
			Mode:  fuseops.Mode(0555 | syscall.S_IFDIR),
		},
		dir: true,
		children: []fuseops.Dirent{
			{Offset: 1, Inode: worldInode, Name: "world", Type: fuseops.DT_File},
		},
	},

	// world
	worldInode: {
		attr: fuseops.StatResult{
			Ino:   uint64(worldInode),
			Nlink: 1,
			Mode:  fuseops.Mode(0444 | syscall.S_IFREG),
			Size:  uint64(len(helloContents)),
		},
	},
}

func findChildInode(name string, children []fuseops.Dirent) (fuseops.InodeID, error) {
	for _, e := range children {
		if e.Name == name {
			return e.Inode, nil
		}
	}
	return 0, syscall.ENOENT
}

type helloFS struct {
	clock timeutil.Clock
}

// New builds the handler table for the fixture. Every returned attribute is
// stamped with clock.Now(), the way a real file system refreshes
// atime/mtime/ctime on each lookup rather than serving a fixed value.
func New(clock timeutil.Clock) *fuseops.HandlerTable {
	fs := &helloFS{clock: clock}

	return &fuseops.HandlerTable{
		LookUpInode:        fs.lookUpInode,
		GetInodeAttributes: fs.getInodeAttributes,
		OpenDir:            fs.openDir,
		ReadDir:            fs.readDir,
		OpenFile:           fs.openFile,
		ReadFile:           fs.readFile,
	}
}

func (fs *helloFS) patchAttributes(attr *fuseops.StatResult) {
	now := fuseops.TimestampFromTime(fs.clock.Now())
	attr.Atime = now
	attr.Mtime = now
	attr.Ctime = now
	attr.Crtime = now
}

func (fs *helloFS) lookUpInode(
	ctx context.Context,
	req *fuseops.LookUpInodeRequest) (*fuseops.LookUpInodeResponse, error) {
	// Find the info for the parent.
	parentInfo, ok := gInodeInfo[req.Parent]
	if !ok {
		return nil, syscall.ENOENT
	}

	// Find the child within the parent.
	childInode, err := findChildInode(req.Name, parentInfo.children)
	if err != nil {
		return nil, err
	}

	attr := gInodeInfo[childInode].attr
	fs.patchAttributes(&attr)

	return &fuseops.LookUpInodeResponse{
		Entry: fuseops.ChildInodeEntry{
			Child: childInode,
			Attr:  attr,
		},
	}, nil
}

func (fs *helloFS) getInodeAttributes(
	ctx context.Context,
	req *fuseops.GetInodeAttributesRequest) (*fuseops.GetInodeAttributesResponse, error) {
	info, ok := gInodeInfo[req.Inode]
	if !ok {
		return nil, syscall.ENOENT
	}

	attr := info.attr
	fs.patchAttributes(&attr)

	return &fuseops.GetInodeAttributesResponse{Attr: attr}, nil
}

func (fs *helloFS) openDir(
	ctx context.Context,
	req *fuseops.OpenDirRequest) (*fuseops.OpenDirResponse, error) {
	// Allow opening any directory.
	if _, ok := gInodeInfo[req.Inode]; !ok {
		return nil, syscall.ENOENT
	}
	return &fuseops.OpenDirResponse{}, nil
}

// readDir uses fuseutil.WriteDirent to measure each entry against the
// caller's byte budget before including it. The dispatcher's own encoder
// writes every returned entry and applies no budget of its own.
func (fs *helloFS) readDir(
	ctx context.Context,
	req *fuseops.ReadDirRequest) (*fuseops.ReadDirResponse, error) {
	info, ok := gInodeInfo[req.Inode]
	if !ok {
		return nil, syscall.ENOENT
	}
	if !info.dir {
		return nil, syscall.EIO
	}

	if req.Offset > fuseops.DirOffset(len(info.children)) {
		return nil, syscall.EIO
	}

	scratch := make([]byte, req.Size)
	used := 0

	var entries []fuseops.Dirent
	for _, e := range info.children[req.Offset:] {
		n := fuseutil.WriteDirent(scratch[used:], e)
		if n == 0 {
			break
		}
		used += n
		entries = append(entries, e)
	}

	return &fuseops.ReadDirResponse{Entries: entries}, nil
}

func (fs *helloFS) openFile(
	ctx context.Context,
	req *fuseops.OpenFileRequest) (*fuseops.OpenFileResponse, error) {
	// Allow opening any file.
	if _, ok := gInodeInfo[req.Inode]; !ok {
		return nil, syscall.ENOENT
	}
	return &fuseops.OpenFileResponse{}, nil
}

func (fs *helloFS) readFile(
	ctx context.Context,
	req *fuseops.ReadFileRequest) (*fuseops.ReadFileResponse, error) {
	// Let io.ReaderAt deal with the semantics.
	reader := strings.NewReader(helloContents)

	data := make([]byte, req.Size)
	n, err := reader.ReadAt(data, req.Offset)

	// FUSE doesn't expect us to return io.EOF for a short read.
	if err == io.EOF {
		err = nil
	}
	if err != nil {
		return nil, err
	}

	return &fuseops.ReadFileResponse{Data: data[:n]}, nil
}
