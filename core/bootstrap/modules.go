package bootstrap

import (
	"github.com/m3rciful/rocketbot/core/dialog"
	"github.com/m3rciful/rocketbot/core/handlers"
	"github.com/m3rciful/rocketbot/core/router"
)

// Module registers a group of commands.
type Module interface {
	Register(reg *router.Registry, dialogs *dialog.Engine)
}

// ModuleFunc adapts a bare function to the Module interface.
type ModuleFunc func(reg *router.Registry, dialogs *dialog.Engine)

// Register executes the underlying function.
func (f ModuleFunc) Register(reg *router.Registry, dialogs *dialog.Engine) {
	f(reg, dialogs)
}

// DefaultModules returns the built-in command set.
func DefaultModules() []Module {
	return []Module{
		ModuleFunc(func(reg *router.Registry, dialogs *dialog.Engine) {
			handlers.Register(reg, dialogs)
		}),
	}
}
