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
	"time"

	"github.com/spf13/viper"
)

// envConfig holds the mount-time knobs this package accepts from the
// process environment, on top of whatever a caller sets explicitly on
// MountConfig. Explicit MountConfig fields always win; envConfig only fills
// in what the caller left at its zero value.
type envConfig struct {
	Debug            bool
	ShutdownGrace    time.Duration
	MaxConcurrentOps int
}

// loadEnvConfig binds the FUSE_* environment variables this package
// recognizes. It never errors: an absent or malformed variable simply
// leaves the corresponding field at its default.
func loadEnvConfig() envConfig {
	v := viper.New()
	v.SetEnvPrefix("FUSE")
	v.AutomaticEnv()

	v.SetDefault("debug", false)
	v.SetDefault("shutdown_grace", 5*time.Second)
	v.SetDefault("max_concurrent_ops", 128)

	return envConfig{
		Debug:            v.GetBool("debug"),
		ShutdownGrace:    v.GetDuration("shutdown_grace"),
		MaxConcurrentOps: v.GetInt("max_concurrent_ops"),
	}
}
