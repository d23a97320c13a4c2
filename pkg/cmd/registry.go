// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/rush86999/atom-sub011/pkg/actions/httprequest"
	logaction "github.com/rush86999/atom-sub011/pkg/actions/log"
	"github.com/rush86999/atom-sub011/pkg/registry"
)

func registerNativeActions(reg *registry.Registry) {
	reg.RegisterAction(httprequest.NewActionFactory())
	reg.RegisterAction(logaction.NewActionFactory())
}

// NewRegistry creates an action registry with the native actions registered.
func NewRegistry(log *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(log)

	registerNativeActions(reg)

	return reg
}
