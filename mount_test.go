package fuse_test

import (
	"context"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/dispatchfs/fuse"
	"github.com/dispatchfs/fuse/fuseops"
)

////////////////////////////////////////////////////////////////////////
// Tests
////////////////////////////////////////////////////////////////////////

func minimalHandlers() *fuseops.HandlerTable {
	return &fuseops.HandlerTable{
		StatFS: func(ctx context.Context, req *fuseops.StatFSRequest) (*fuseops.StatFSResponse, error) {
			return &fuseops.StatFSResponse{}, nil
		},
	}
}

func TestSuccessfulMount(t *testing.T) {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "mount_test")
	if err != nil {
		t.Fatalf("os.MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	s, err := fuse.Mount(dir, minimalHandlers(), &fuse.MountConfig{})
	if err != nil {
		t.Fatalf("fuse.Mount: %v", err)
	}

	defer func() {
		if err := s.Join(ctx); err != nil {
			t.Errorf("Joining: %v", err)
		}
	}()

	defer fuse.Unmount(s.Dir())
}

func TestNonEmptyMountPoint(t *testing.T) {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "mount_test")
	if err != nil {
		t.Fatalf("os.MkdirTemp: %v", err)
	}
	defer os.RemoveAll(dir)

	if err := os.WriteFile(path.Join(dir, "foo"), []byte{}, 0600); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}

	s, err := fuse.Mount(dir, minimalHandlers(), &fuse.MountConfig{})
	if err == nil {
		fuse.Unmount(s.Dir())
		s.Join(ctx)
		t.Fatal("fuse.Mount returned nil")
	}

	const want = "not empty"
	if got := err.Error(); !strings.Contains(got, want) {
		t.Errorf("Unexpected error: %v", got)
	}
}
