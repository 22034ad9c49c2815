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
	"os/exec"
)

// unmount asks diskutil to tear down an osxfuse mount. diskutil, not
// umount(8), is osxfuse's documented unmount path: plain umount leaves the
// kernel side of the mount in a state the fuse device never learns about.
func unmount(dir string) error {
	cmd := exec.Command("diskutil", "umount", "force", dir)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Run(); err != nil {
		out := bytes.TrimRight(buf.Bytes(), "\n")
		return fmt.Errorf("diskutil umount: %w: %s", err, out)
	}
	return nil
}
