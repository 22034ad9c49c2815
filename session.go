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
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jacobsa/timeutil"

	"github.com/dispatchfs/fuse/fuseops"
)

var (
	liveSessionsMu sync.Mutex
	liveSessions   = map[string]*Session{}
)

// MountConfig is the optional configuration accepted by Mount. The zero
// value is a reasonable default.
type MountConfig struct {
	// FSName is advertised to the kernel and shows up in mount(8)'s source
	// column.
	FSName string

	// ReadOnly mounts with the ro option, causing the kernel to reject any
	// request that would modify the tree before it ever reaches a handler.
	ReadOnly bool

	// AllowOther permits users other than the mount's owner to access it
	// (Linux's allow_other option).
	AllowOther bool

	// EnableVnodeCaching restores osxfuse entry caching on Darwin. See the
	// notes in mount_darwin.go; ignored on Linux.
	EnableVnodeCaching bool

	// Debug turns on verbose per-request logging. Overrides FUSE_DEBUG if
	// set explicitly to true; the zero value defers to the environment.
	Debug bool

	// MaxConcurrentOps bounds how many requests the dispatcher will run
	// handlers for at once. Zero defers to FUSE_MAX_CONCURRENT_OPS, or 128.
	MaxConcurrentOps int

	// ShutdownGrace bounds how long Unmount waits for in-flight handler
	// calls to finish before abandoning them. Zero defers to
	// FUSE_SHUTDOWN_GRACE, or 5s.
	ShutdownGrace time.Duration

	// Clock is substituted in tests needing deterministic timestamps; nil
	// selects the real wall clock.
	Clock timeutil.Clock
}

func (c *MountConfig) resolve() MountConfig {
	out := *c
	env := loadEnvConfig()

	if !out.Debug {
		out.Debug = env.Debug
	}
	if out.MaxConcurrentOps == 0 {
		out.MaxConcurrentOps = env.MaxConcurrentOps
	}
	if out.ShutdownGrace == 0 {
		out.ShutdownGrace = env.ShutdownGrace
	}
	if out.Clock == nil {
		out.Clock = timeutil.RealClock()
	}

	return out
}

// Session represents a single mount: the open /dev/fuse descriptor, the
// dispatcher driving it, and the bookkeeping Unmount needs to tear
// everything down in order.
type Session struct {
	id     uuid.UUID
	dir    string
	logger *slog.Logger

	dev *os.File
	d   *dispatcher

	joinStatus          error
	joinStatusAvailable chan struct{}
}

// ID returns the session's log-correlation identifier, stable for the
// lifetime of the mount.
func (s *Session) ID() uuid.UUID { return s.id }

// Dir returns the directory the session is mounted on.
func (s *Session) Dir() string { return s.dir }

// Join blocks until the session has been unmounted, returning whatever
// error the dispatcher's serve loop exited with.
func (s *Session) Join(ctx context.Context) error {
	select {
	case <-s.joinStatusAvailable:
		return s.joinStatus
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Mount mounts a file system backed by handlers at dir and begins serving
// requests in the background. It blocks until the kernel's INIT handshake
// has completed.
func Mount(dir string, handlers *fuseops.HandlerTable, config *MountConfig) (*Session, error) {
	if config == nil {
		config = &MountConfig{}
	}
	cfg := config.resolve()

	id := uuid.New()
	logger := newLogger(cfg.Debug).With("session", id.String(), "mountpoint", dir)

	logger.Info("mounting")
	dev, err := mount(dir, &cfg)
	if err != nil {
		return nil, fmt.Errorf("mount: %w", err)
	}

	s := &Session{
		id:                  id,
		dir:                 dir,
		logger:              logger,
		dev:                 dev,
		joinStatusAvailable: make(chan struct{}),
	}

	s.d = newDispatcher(dev, handlers, cfg, logger)

	readyCh := make(chan error, 1)
	go func() {
		err := s.d.run(readyCh)
		s.joinStatus = err
		close(s.joinStatusAvailable)
	}()

	if err := <-readyCh; err != nil {
		return nil, fmt.Errorf("fuse init handshake: %w", err)
	}

	liveSessionsMu.Lock()
	liveSessions[dir] = s
	liveSessionsMu.Unlock()

	s.installSignalHandling()

	logger.Info("mounted")
	return s, nil
}

// installSignalHandling arranges for SIGINT and SIGTERM to request a
// graceful Unmount, and ignores SIGPIPE so that a reader going away (e.g.
// the kernel closing /dev/fuse out from under a write) surfaces as an EPIPE
// error instead of killing the process. The goroutine exits once the
// session is torn down through any path, signal-triggered or not.
func (s *Session) installSignalHandling() {
	signal.Ignore(syscall.SIGPIPE)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			s.logger.Info("received signal, unmounting", "signal", sig)
			if err := Unmount(s.dir); err != nil {
				s.logger.Warn("unmount on signal failed", "err", err)
			}
		case <-s.joinStatusAvailable:
		}
	}()
}

// Unmount requests the kernel tear down the mount at dir, then waits up to
// the owning session's configured grace period for in-flight handler calls
// to return before abandoning them and closing the device. If dir was not
// mounted through Mount in this process, it falls back to the bare kernel-
// level unmount.
func Unmount(dir string) error {
	liveSessionsMu.Lock()
	s := liveSessions[dir]
	delete(liveSessions, dir)
	liveSessionsMu.Unlock()

	if err := unmount(dir); err != nil {
		return err
	}

	if s != nil {
		s.d.shutdown()
	}
	return nil
}
