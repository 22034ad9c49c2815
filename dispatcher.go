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
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jacobsa/reqtrace"
	"golang.org/x/sync/semaphore"

	"github.com/dispatchfs/fuse/fuseops"
	"github.com/dispatchfs/fuse/internal/buffer"
	"github.com/dispatchfs/fuse/internal/fusekernel"
)

// dispatcher owns the /dev/fuse descriptor and turns the byte stream read
// from it into HandlerTable calls, one goroutine per in-flight request, up
// to cfg.MaxConcurrentOps at a time.
type dispatcher struct {
	dev      *os.File
	handlers *fuseops.HandlerTable
	cfg      MountConfig
	logger   *slog.Logger

	handles *handleRegistry

	protocol fusekernel.Protocol

	sem *semaphore.Weighted

	mu sync.Mutex
	// GUARDED_BY(mu)
	inflight map[uint64]context.CancelFunc
	// GUARDED_BY(mu)
	shuttingDown bool

	wg sync.WaitGroup

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

func newDispatcher(dev *os.File, handlers *fuseops.HandlerTable, cfg MountConfig, logger *slog.Logger) *dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &dispatcher{
		dev:            dev,
		handlers:       handlers,
		cfg:            cfg,
		logger:         logger,
		handles:        newHandleRegistry(),
		sem:            semaphore.NewWeighted(int64(cfg.MaxConcurrentOps)),
		inflight:       make(map[uint64]context.CancelFunc),
		shutdownCtx:    ctx,
		shutdownCancel: cancel,
	}
}

// run is the dispatcher's main loop: read one message, handle INIT/FORGET/
// INTERRUPT inline, and fan every other opcode out to its own goroutine.
// readyCh receives nil once the INIT handshake completes, or the error
// that prevented it; run always closes over readyCh exactly once.
func (d *dispatcher) run(readyCh chan<- error) error {
	var im buffer.InMessage
	initDone := false

	for {
		if err := im.Init(d.dev); err != nil {
			if !initDone {
				readyCh <- err
			}
			d.wg.Wait()
			if errors.Is(err, io.EOF) || isShutdownReadErr(err) {
				return nil
			}
			return err
		}

		h := im.Header()

		if h.Opcode == fusekernel.OpInit {
			if err := d.handleInit(h, &im); err != nil {
				readyCh <- err
				return err
			}
			initDone = true
			readyCh <- nil
			continue
		}

		if !initDone {
			// The kernel never sends anything before INIT in practice, but
			// if it did, silently dropping the request would leave the
			// caller hanging forever; refuse it instead.
			d.writeReply(h.Unique, nil, int32(fuseops.ErrIO))
			continue
		}

		switch h.Opcode {
		case fusekernel.OpForget:
			d.handleForget(h, &im)
			continue
		case fusekernel.OpBatchForget:
			d.handleBatchForget(h, &im)
			continue
		case fusekernel.OpInterrupt:
			d.handleInterrupt(h, &im)
			continue
		case fusekernel.OpDestroy:
			d.writeReply(h.Unique, nil, 0)
			continue
		}

		// Copy out of the shared scratch buffer before handing off to a
		// goroutine, which may outlive this loop iteration.
		reqCopy := append([]byte(nil), im.Remaining()...)
		header := *h

		if err := d.sem.Acquire(d.shutdownCtx, 1); err != nil {
			// Shutting down: stop accepting new work but let the loop drain
			// what's already been read.
			continue
		}

		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			defer d.sem.Release(1)
			d.serveOne(header, reqCopy)
		}()
	}
}

func isShutdownReadErr(err error) bool {
	return errors.Is(err, os.ErrClosed)
}

// serveOne builds the request's context (canceled by either INTERRUPT or
// mount-wide shutdown), dispatches it through the opcode switch in
// codec.go, and writes exactly one reply.
func (d *dispatcher) serveOne(h fusekernel.InHeader, body []byte) {
	// mergeContext's own returned cancel is what handleInterrupt calls to
	// cancel just this request; d.shutdownCtx cancels every in-flight
	// request's merged context at once when the session tears down.
	ctx, cancel := mergeContext(d.shutdownCtx)
	d.registerInflight(h.Unique, cancel)
	defer d.unregisterInflight(h.Unique)
	defer cancel()

	var reportSpan func(error)
	ctx, reportSpan = reqtrace.Trace(ctx, h.Opcode.String())

	reqCtx := fuseops.RequestContext{
		Uid: fuseops.Uid(h.UID),
		Gid: fuseops.Gid(h.GID),
		Pid: h.PID,
	}

	out, errno := d.dispatch(ctx, h, reqCtx, body)

	var spanErr error
	if errno != 0 {
		spanErr = newErrno(errno)
	}
	reportSpan(spanErr)

	d.writeReply(h.Unique, out, errno)
}

func (d *dispatcher) registerInflight(unique uint64, cancel context.CancelFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inflight[unique] = cancel
}

func (d *dispatcher) unregisterInflight(unique uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inflight, unique)
}

func (d *dispatcher) handleInterrupt(h *fusekernel.InHeader, im *buffer.InMessage) {
	in := (*fusekernel.InterruptIn)(im.Consume(uintptr(fusekernel.InterruptInSize)))
	if in == nil {
		return
	}
	d.mu.Lock()
	cancel := d.inflight[in.Unique]
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// writeReply serializes and writes a single OutMessage. out is either nil
// (no payload) or a func(*buffer.OutMessage) that appends one, matched to
// the request's opcode by codec.go.
func (d *dispatcher) writeReply(unique uint64, encode func(*buffer.OutMessage), errno int32) {
	var om buffer.OutMessage
	om.Reset()
	if encode != nil && errno == 0 {
		encode(&om)
	}

	oh := om.OutHeader()
	oh.Unique = unique
	oh.Error = -errno
	oh.Len = uint32(om.Len())

	if _, err := d.dev.Write(om.Bytes()); err != nil {
		d.logger.Warn("write reply failed", "unique", unique, "err", err)
	}
}

// shutdown cancels every in-flight request, waits up to cfg.ShutdownGrace
// for them to finish, then closes the device. Called by Unmount via the
// Session that owns this dispatcher.
func (d *dispatcher) shutdown() {
	d.mu.Lock()
	d.shuttingDown = true
	d.mu.Unlock()

	d.shutdownCancel()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(d.cfg.ShutdownGrace):
		d.logger.Warn("shutdown grace period elapsed with requests still in flight")
	}

	d.dev.Close()
}
