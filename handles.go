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
	"github.com/jacobsa/syncutil"

	"github.com/dispatchfs/fuse/fuseops"
)

// handleRegistry hands out HandleIDs for Open/OpenDir/Create and tracks the
// per-inode lookup count the kernel expects the core to maintain: every
// LookUp, MkDir, CreateFile, CreateSymlink, and CreateLink reply increments
// the returned child's count by one, and the kernel balances that with a
// FORGET carrying the same count once it drops the inode from its cache.
// ReleaseFileHandle/ReleaseDirHandle never reuses a freed HandleID; the
// registry's counter is monotonic for the lifetime of the mount.
type handleRegistry struct {
	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	next fuseops.HandleID

	// GUARDED_BY(mu)
	live map[fuseops.HandleID]struct{}

	// GUARDED_BY(mu)
	lookupCounts map[fuseops.InodeID]uint64
}

func newHandleRegistry() *handleRegistry {
	r := &handleRegistry{
		live:         make(map[fuseops.HandleID]struct{}),
		lookupCounts: make(map[fuseops.InodeID]uint64),
	}
	r.mu = syncutil.NewInvariantMutex(r.checkInvariants)
	return r
}

func (r *handleRegistry) checkInvariants() {
	for ino, n := range r.lookupCounts {
		if n == 0 {
			panic("zero lookup count retained for inode " + itoa64(uint64(ino)))
		}
	}
}

func itoa64(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// allocate returns a handle ID never previously issued by this registry.
func (r *handleRegistry) allocate() fuseops.HandleID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	h := r.next
	r.live[h] = struct{}{}
	return h
}

// isLive reports whether h was allocated and has not yet been released.
// Callers consult this before honoring read/write/flush/fsync/release
// requests against a handle: the kernel is not trusted to only ever send
// those for handles it was actually given back by open/create/opendir.
func (r *handleRegistry) isLive(h fuseops.HandleID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.live[h]
	return ok
}

// release forgets h. Repeated release of the same handle is a caller bug
// but not one the registry defends against beyond a no-op delete.
func (r *handleRegistry) release(h fuseops.HandleID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.live, h)
}

// recordLookup bumps ino's lookup count by delta, the reference count the
// kernel believes it holds. Called once per ChildInodeEntry the core hands
// back to the kernel.
func (r *handleRegistry) recordLookup(ino fuseops.InodeID, delta uint64) {
	if delta == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookupCounts[ino] += delta
}

// forget decrements ino's lookup count by n, as directed by a kernel FORGET
// or BATCH_FORGET. It returns true if the count reached zero, the signal a
// caller uses to decide whether to also release any core-side state kept
// for the inode.
func (r *handleRegistry) forget(ino fuseops.InodeID, n uint64) (reachedZero bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.lookupCounts[ino]
	if n >= cur {
		delete(r.lookupCounts, ino)
		return true
	}
	r.lookupCounts[ino] = cur - n
	return false
}
