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
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/dispatchfs/fuse/internal/buffer"
)

var errNoAvail = errors.New("no available fuse devices")
var errNotLoaded = errors.New("osxfusefs is not loaded")

func loadOSXFUSE() error {
	cmd := exec.Command("/Library/Filesystems/osxfusefs.fs/Support/load_osxfusefs")
	cmd.Dir = "/"
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func openOSXFUSEDev() (*os.File, error) {
	for i := uint64(0); ; i++ {
		path := fmt.Sprintf("/dev/osxfuse%d", i)
		dev, err := os.OpenFile(path, os.O_RDWR, 0000)
		if os.IsNotExist(err) {
			if i == 0 {
				return nil, errNotLoaded
			}
			return nil, errNoAvail
		}
		if pe, ok := err.(*os.PathError); ok && pe.Err == syscall.EBUSY {
			continue
		}
		return dev, err
	}
}

// darwinMountOptions mirrors linuxMountOptions for the osxfuse mount helper,
// which understands the same default_permissions/ro/allow_other vocabulary.
func (c *MountConfig) darwinMountOptions() []string {
	opts := []string{"default_permissions"}
	if c.FSName != "" {
		opts = append(opts, "volname="+c.FSName)
	}
	if c.ReadOnly {
		opts = append(opts, "ro")
	}
	if c.AllowOther {
		opts = append(opts, "allow_other")
	}
	// osxfuse entry caching stays off (novncache) unless EnableVnodeCaching
	// is set.
	if !c.EnableVnodeCaching {
		opts = append(opts, "novncache")
	}
	return opts
}

func callMount(dir string, cfg *MountConfig, f *os.File) error {
	bin := "/Library/Filesystems/osxfusefs.fs/Support/mount_osxfusefs"

	opts := cfg.darwinMountOptions()
	for _, o := range opts {
		if strings.Contains(o, ",") {
			return fmt.Errorf("mount option %q cannot contain a comma on darwin", o)
		}
	}

	cmd := exec.Command(
		bin,
		"-o", strings.Join(opts, ","),
		// osxfuse ignores InitResponse's negotiated MaxWrite and uses this
		// instead.
		"-o", "iosize="+strconv.Itoa(buffer.MaxWriteSize),
		"3", // refers to the fd passed via cmd.ExtraFiles
		dir,
	)
	cmd.ExtraFiles = []*os.File{f}
	cmd.Env = append(os.Environ(), "MOUNT_FUSEFS_CALL_BY_LIB=", "MOUNT_FUSEFS_DAEMON_PATH="+bin)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Run(); err != nil {
		if buf.Len() > 0 {
			out := bytes.TrimRight(buf.Bytes(), "\n")
			return fmt.Errorf("%v: %s", err, out)
		}
		return err
	}
	return nil
}

// mount opens an osxfuse device and hands it to the mount_osxfusefs helper,
// the Darwin analogue of mount_linux.go's fusermount dance: a privileged
// helper binary does the actual mount(2) and the file system only ever
// drives the resulting file descriptor.
func mount(dir string, cfg *MountConfig) (*os.File, error) {
	dev, err := openOSXFUSEDev()
	if err == errNotLoaded {
		if err := loadOSXFUSE(); err != nil {
			return nil, fmt.Errorf("loadOSXFUSE: %w", err)
		}
		dev, err = openOSXFUSEDev()
	}
	if err != nil {
		return nil, fmt.Errorf("openOSXFUSEDev: %w", err)
	}

	if err := callMount(dir, cfg, dev); err != nil {
		dev.Close()
		return nil, fmt.Errorf("callMount: %w", err)
	}

	return dev, nil
}
