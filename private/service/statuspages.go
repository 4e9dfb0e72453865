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

// Package service provides the HTTP status pages of the management endpoint.
package service

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"runtime"
	"runtime/debug"
	"sort"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/openbacnet/openbacnet/pkg/log"
	"github.com/openbacnet/openbacnet/pkg/private/serrors"
)

const mainTmpl = `
<!DOCTYPE html>
<html>
	<head>
		<title>{{ .ElemID }}</title>
	</head>
	<body style="font-family:sans-serif">
		<h1>{{ .ElemID }}</h1>
		{{ range .Pages }}
		<p><a href="{{ .Page }}">[{{ .Page }}]</a> {{ .Info }}</p>
		{{ end }}
	</body>
</html>
`

type mainData struct {
	ElemID string
	Pages  []pageData
}

type pageData struct {
	Page string
	Info string
}

// StatusPage is a registered page on the status web server.
type StatusPage struct {
	// Info is a short description linked from the index.
	Info string
	// Handler serves the page.
	Handler http.HandlerFunc
}

// StatusPages maps page paths to status pages.
type StatusPages map[string]StatusPage

// Register adds the pages and an index linking them to the mux.
func (s StatusPages) Register(serveMux *http.ServeMux, elemID string) error {
	t, err := template.New("main").Parse(mainTmpl)
	if err != nil {
		return serrors.Wrap("parsing status page template", err)
	}
	data := mainData{ElemID: elemID}
	for page, p := range s {
		serveMux.HandleFunc("/"+page, p.Handler)
		data.Pages = append(data.Pages, pageData{Page: page, Info: p.Info})
	}
	sort.Slice(data.Pages, func(i, j int) bool {
		return data.Pages[i].Page < data.Pages[j].Page
	})
	serveMux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if err := t.Execute(w, data); err != nil {
			http.Error(w, "Unable to execute template",
				http.StatusInternalServerError)
		}
	})
	return nil
}

// NewInfoStatusPage returns a page with basic process information.
func NewInfoStatusPage() StatusPage {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, versionInfo())
		fmt.Fprintf(w, "  pid:           %d\n", os.Getpid())
		fmt.Fprintf(w, "  euid/egid:     %d %d\n", os.Geteuid(), os.Getegid())
		fmt.Fprintf(w, "  cmd line:      %q\n", os.Args)
	}
	return StatusPage{
		Info:    "process information",
		Handler: handler,
	}
}

// NewConfigStatusPage returns a page with the TOML representation of the
// running configuration.
func NewConfigStatusPage(config any) StatusPage {
	handler := func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(config); err != nil {
			http.Error(w, "Unable to marshal config",
				http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, buf.String())
	}
	return StatusPage{
		Info:    "configuration",
		Handler: handler,
	}
}

// NewLogLevelStatusPage returns a page to inspect and change the console log
// level at runtime.
func NewLogLevelStatusPage() StatusPage {
	return StatusPage{
		Info:    "logging level (supports PUT)",
		Handler: log.ConsoleLevel.ServeHTTP,
	}
}

func versionInfo() string {
	version := "unknown"
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		version = info.Main.Version
	}
	return fmt.Sprintf("  version:       %s\n  go version:    %s\n",
		version, runtime.Version())
}
