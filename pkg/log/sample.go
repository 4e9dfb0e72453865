// Copyright 2025 The OpenBACnet Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"io"

	"github.com/openbacnet/openbacnet/private/config"
)

const consoleConfigSample = `
# Console logging level (debug|info|error) (default info)
level = "info"

# Encode the log either in "human" or "json" format. (default human)
format = "human"

# If set, specifies the minimum level at which a stack trace is attached to
# the log entry. One of (debug|info|error|none). (default none)
stacktrace_level = "none"
`

func (c *Config) Sample(dst io.Writer, path config.Path, ctx config.CtxMap) {
	config.WriteSample(dst, path, ctx, &c.Console)
}

// ConfigName returns the name this config block has in a TOML file.
func (c *Config) ConfigName() string {
	return "log"
}

func (c *ConsoleConfig) Sample(dst io.Writer, path config.Path, ctx config.CtxMap) {
	config.WriteString(dst, consoleConfigSample)
}

func (c *ConsoleConfig) ConfigName() string {
	return "console"
}
