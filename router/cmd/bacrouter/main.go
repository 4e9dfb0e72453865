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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/opentracing/opentracing-go"
	"golang.org/x/sync/errgroup"

	"github.com/openbacnet/openbacnet/pkg/bacnet"
	"github.com/openbacnet/openbacnet/pkg/log"
	"github.com/openbacnet/openbacnet/pkg/private/serrors"
	"github.com/openbacnet/openbacnet/private/app/launcher"
	"github.com/openbacnet/openbacnet/private/service"
	"github.com/openbacnet/openbacnet/router"
	"github.com/openbacnet/openbacnet/router/config"
	"github.com/openbacnet/openbacnet/router/control"
)

var globalCfg config.Config

func main() {
	application := launcher.Application{
		TOMLConfig: &globalCfg,
		ShortName:  "BACnet Router",
		Main:       realMain,
	}
	application.Run()
}

func realMain(ctx context.Context) error {
	tracer, trCloser, err := globalCfg.Tracing.NewTracer(globalCfg.General.ID)
	if err != nil {
		return serrors.Wrap("initializing tracer", err)
	}
	defer trCloser.Close()
	opentracing.SetGlobalTracer(tracer)

	dp := router.NewDataPlane()
	if err := dp.SetApplicationHandler(apduLogger{}); err != nil {
		return serrors.Wrap("setting application handler", err)
	}
	if err := control.ConfigDataplane(dp, &globalCfg); err != nil {
		return serrors.Wrap("configuring dataplane", err)
	}

	statusPages := service.StatusPages{
		"info":      service.NewInfoStatusPage(),
		"config":    service.NewConfigStatusPage(&globalCfg),
		"log/level": service.NewLogLevelStatusPage(),
		"routes":    routesHandler(dp),
	}
	if err := statusPages.Register(http.DefaultServeMux, globalCfg.General.ID); err != nil {
		return err
	}

	g, errCtx := errgroup.WithContext(ctx)

	// Initialize and start service management API.
	if globalCfg.API.Addr != "" {
		r := chi.NewRouter()
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
		}))
		r.Get("/", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, "/routes", http.StatusSeeOther)
		}))
		r.Get("/info", service.NewInfoStatusPage().Handler)
		r.Get("/config", service.NewConfigStatusPage(&globalCfg).Handler)
		r.Get("/log/level", service.NewLogLevelStatusPage().Handler)
		r.Put("/log/level", service.NewLogLevelStatusPage().Handler)
		r.Get("/routes", routesHandler(dp).Handler)
		log.Info("Exposing API", "addr", globalCfg.API.Addr)
		mgmtServer := &http.Server{
			Addr:    globalCfg.API.Addr,
			Handler: r,
		}
		g.Go(func() error {
			defer log.HandlePanic()
			<-errCtx.Done()
			return mgmtServer.Close()
		})
		g.Go(func() error {
			defer log.HandlePanic()
			err := mgmtServer.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return serrors.Wrap("serving service management API", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		defer log.HandlePanic()
		return globalCfg.Metrics.ServePrometheus(errCtx)
	})
	g.Go(func() error {
		defer log.HandlePanic()
		if err := dp.Run(errCtx); err != nil {
			return serrors.Wrap("running dataplane", err)
		}
		return nil
	})

	return g.Wait()
}

// apduLogger consumes the traffic addressed to the router itself. The router
// implements no application-layer services, so it only shows up in the debug
// log.
type apduLogger struct{}

func (apduLogger) HandleAPDU(src bacnet.Address, apdu []byte) {
	log.Debug("APDU for local application", "src", src, "len", len(apdu))
}

func routesHandler(dp interface{ Routes() []router.RouteInfo }) service.StatusPage {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		bytes, err := json.MarshalIndent(dp.Routes(), "", "    ")
		if err != nil {
			http.Error(w, "Unable to marshal routes", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, string(bytes)+"\n")
	}
	return service.StatusPage{
		Info:    "routing table",
		Handler: handler,
	}
}
