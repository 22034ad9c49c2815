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

import "errors"

// ErrExternallyManagedMountPoint is returned by Unmount when dir looks like
// a /dev/fd/N mountpoint handed to us by an external mount manager (e.g.
// systemd's fusermount-wrapping units); such mountpoints are torn down by
// their owner, not by us, and fusermount -u against them normally fails.
var ErrExternallyManagedMountPoint = errors.New("fuse: mountpoint is externally managed")
