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

// Package fuse enables writing and mounting user-space file systems.
//
// The primary elements of interest are:
//
//  *  fuseops.HandlerTable, a struct of function fields with one field per
//     FUSE operation. A file system supplies only the operations it cares
//     about; any nil field is answered with ENOSYS without ever reaching the
//     kernel's retry logic or a user goroutine.
//
//  *  Mount, which opens /dev/fuse (or the platform equivalent), drives the
//     INIT handshake, and returns a *Session that owns the dispatcher
//     goroutines translating wire requests into HandlerTable calls.
//
//  *  Unmount, which asks the kernel to tear down a mount and waits for the
//     owning Session's in-flight handler calls to return before abandoning
//     them.
//
// Every handler receives a context.Context that is canceled if the kernel
// sends a matching INTERRUPT request, and every blocking operation should
// respect it.
//
// In order to use this package to mount file systems on OS X, the system must
// have FUSE for OS X installed: http://osxfuse.github.io/
package fuse
