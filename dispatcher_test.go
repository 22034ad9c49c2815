package fuse

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"unsafe"

	"github.com/jacobsa/timeutil"

	"github.com/dispatchfs/fuse/fuseops"
	"github.com/dispatchfs/fuse/internal/buffer"
	"github.com/dispatchfs/fuse/internal/fusekernel"
	"github.com/dispatchfs/fuse/samples/hellofs"
)

func newTestDispatcher(t *testing.T) *dispatcher {
	t.Helper()

	cfg := (&MountConfig{Clock: timeutil.RealClock()}).resolve()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newDispatcher(nil, hellofs.New(cfg.Clock), cfg, logger)
}

func cstringBody(s string) []byte {
	return append([]byte(s), 0)
}

func readInBody(in fusekernel.ReadIn) []byte {
	buf := make([]byte, fusekernel.ReadInSize)
	*(*fusekernel.ReadIn)(unsafe.Pointer(&buf[0])) = in
	return buf
}

func TestDispatchLookUpAndReadFile(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher(t)

	// Look up "hello" under the root.
	lookupHdr := fusekernel.InHeader{Opcode: fusekernel.OpLookup, NodeID: uint64(fuseops.RootInodeID)}
	encode, errno := d.dispatch(ctx, lookupHdr, fuseops.RequestContext{}, cstringBody("hello"))
	if errno != 0 {
		t.Fatalf("lookup hello: errno %d", errno)
	}

	var om buffer.OutMessage
	om.Reset()
	encode(&om)

	entry := (*fusekernel.EntryOut)(unsafe.Pointer(&om.Bytes()[buffer.OutMessageHeaderSize]))
	if entry.Attr.Size != uint64(len("Hello, world!")) {
		t.Errorf("looked-up entry size = %d, want %d", entry.Attr.Size, len("Hello, world!"))
	}

	// Look up a name that doesn't exist.
	_, errno = d.dispatch(ctx, lookupHdr, fuseops.RequestContext{}, cstringBody("nope"))
	if errno == 0 {
		t.Fatalf("lookup of missing name unexpectedly succeeded")
	}

	// Open the file, then read its contents back through ReadFile.
	openHdr := fusekernel.InHeader{Opcode: fusekernel.OpOpen, NodeID: entry.Nodeid}
	encode, errno = d.dispatch(ctx, openHdr, fuseops.RequestContext{}, nil)
	if errno != 0 {
		t.Fatalf("open: errno %d", errno)
	}

	var oom buffer.OutMessage
	oom.Reset()
	encode(&oom)
	fileFh := (*fusekernel.OpenOut)(unsafe.Pointer(&oom.Bytes()[buffer.OutMessageHeaderSize])).Fh

	readHdr := fusekernel.InHeader{Opcode: fusekernel.OpRead, NodeID: entry.Nodeid}
	encode, errno = d.dispatch(ctx, readHdr, fuseops.RequestContext{}, readInBody(fusekernel.ReadIn{Fh: fileFh, Offset: 0, Size: 32}))
	if errno != 0 {
		t.Fatalf("read: errno %d", errno)
	}

	var rom buffer.OutMessage
	rom.Reset()
	encode(&rom)

	got := string(rom.Bytes()[buffer.OutMessageHeaderSize:])
	if want := "Hello, world!"; got != want {
		t.Errorf("ReadFile data = %q, want %q", got, want)
	}
}

func TestDispatchReadDir(t *testing.T) {
	ctx := context.Background()
	d := newTestDispatcher(t)

	h := fusekernel.InHeader{Opcode: fusekernel.OpOpendir, NodeID: uint64(fuseops.RootInodeID)}
	encode, errno := d.dispatch(ctx, h, fuseops.RequestContext{}, nil)
	if errno != 0 {
		t.Fatalf("opendir: errno %d", errno)
	}

	var oom buffer.OutMessage
	oom.Reset()
	encode(&oom)
	dirFh := (*fusekernel.OpenOut)(unsafe.Pointer(&oom.Bytes()[buffer.OutMessageHeaderSize])).Fh

	readdirHdr := fusekernel.InHeader{Opcode: fusekernel.OpReaddir, NodeID: uint64(fuseops.RootInodeID)}
	in := fusekernel.ReadIn{Fh: dirFh, Offset: 0, Size: 4096}
	encode, errno = d.dispatch(ctx, readdirHdr, fuseops.RequestContext{}, readInBody(in))
	if errno != 0 {
		t.Fatalf("readdir: errno %d", errno)
	}

	var om buffer.OutMessage
	om.Reset()
	encode(&om)

	if len(om.Bytes()) <= buffer.OutMessageHeaderSize {
		t.Fatalf("readdir returned no entries")
	}
}
