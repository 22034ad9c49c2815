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
	"io"
	"log/slog"
	"os"
)

// newLogger builds the structured logger a Session uses for request tracing
// and lifecycle events. debug selects stderr text output at Debug level;
// otherwise only Info-and-above records reach stderr, matching the old
// fuse.debug flag's on/off behavior but through slog instead of a bare
// *log.Logger.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	var w io.Writer = os.Stderr
	if debug {
		level = slog.LevelDebug
	}

	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}
