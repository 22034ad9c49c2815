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
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// parseFuseFd recognizes the /dev/fd/N mountpoint form some container
// runtimes and privileged launchers use to hand us an already-open FUSE
// file descriptor, bypassing fusermount entirely. It returns -1 and an
// error for any path not of that exact shape.
func parseFuseFd(dir string) (int, error) {
	const prefix = "/dev/fd/"
	if !strings.HasPrefix(dir, prefix) {
		return -1, fmt.Errorf("not a /dev/fd/N path: %s", dir)
	}
	n, err := strconv.Atoi(dir[len(prefix):])
	if err != nil || n < 0 {
		return -1, fmt.Errorf("not a /dev/fd/N path: %s", dir)
	}
	return n, nil
}

// An unprivileged process cannot open /dev/fuse directly; the setuid
// fusermount (or fusermount3) helper does it on our behalf and hands the
// resulting file descriptor back over a unix domain socketpair using
// SCM_RIGHTS ancillary data. This is the same dance bazil.org/fuse and
// hanwen/go-fuse perform; we just don't link either, preferring to own the
// few dozen lines involved.
func mount(dir string, cfg *MountConfig) (*os.File, error) {
	if fd, err := parseFuseFd(dir); err == nil {
		return os.NewFile(uintptr(fd), dir), nil
	}

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socketpair: %w", err)
	}

	local := os.NewFile(uintptr(fds[0]), "fuse-commfd-local")
	defer local.Close()
	remote := os.NewFile(uintptr(fds[1]), "fuse-commfd-remote")
	defer remote.Close()

	helper, err := findFusermount()
	if err != nil {
		return nil, err
	}

	args := []string{"-o", strings.Join(cfg.linuxMountOptions(), ",")}
	args = append(args, dir)

	cmd := exec.Command(helper, args...)
	cmd.Env = append(os.Environ(), "_FUSE_COMMFD=3")
	cmd.ExtraFiles = []*os.File{remote}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = os.Stdout

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%s: %w: %s", helper, err, bytes.TrimRight(stderr.Bytes(), "\n"))
		}
		return nil, fmt.Errorf("%s: %w", helper, err)
	}

	dev, err := recvDevFD(local)
	if err != nil {
		return nil, fmt.Errorf("receiving /dev/fuse descriptor: %w", err)
	}

	return dev, nil
}

// recvDevFD reads the single SCM_RIGHTS control message fusermount sends
// over sock and returns the descriptor it carried as an *os.File.
func recvDevFD(sock *os.File) (*os.File, error) {
	buf := make([]byte, 32)
	oob := make([]byte, unix.CmsgSpace(4))

	raw, err := sock.SyscallConn()
	if err != nil {
		return nil, err
	}

	var n, oobn int
	var rerr error
	if err := raw.Read(func(fd uintptr) bool {
		n, oobn, _, _, rerr = unix.Recvmsg(int(fd), buf, oob, 0)
		return true
	}); err != nil {
		return nil, err
	}
	if rerr != nil {
		return nil, rerr
	}
	if n == 0 && oobn == 0 {
		return nil, fmt.Errorf("empty response from fusermount")
	}

	cmsgs, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return nil, err
	}
	for _, c := range cmsgs {
		fds, err := unix.ParseUnixRights(&c)
		if err != nil {
			continue
		}
		if len(fds) > 0 {
			return os.NewFile(uintptr(fds[0]), "/dev/fuse"), nil
		}
	}

	return nil, fmt.Errorf("no file descriptor in fusermount's reply")
}

func findFusermount() (string, error) {
	for _, name := range []string{"fusermount3", "fusermount"} {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("fusermount3 (or fusermount) not found in PATH")
}

// linuxMountOptions renders cfg into the -o option string passed to
// fusermount. default_permissions pushes POSIX permission checks into the
// kernel rather than requiring every handler to reimplement them; see the
// notes on StatResult.Mode.
func (c *MountConfig) linuxMountOptions() []string {
	opts := []string{"default_permissions"}
	if c.FSName != "" {
		opts = append(opts, "fsname="+c.FSName)
	}
	if c.ReadOnly {
		opts = append(opts, "ro")
	}
	if c.AllowOther {
		opts = append(opts, "allow_other")
	}
	return opts
}
