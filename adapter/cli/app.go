package cli

import (
	"errors"
	"fmt"

	internalApp "github.com/felixgeelhaar/slotwatch/internal/app"
)

// ErrAppNotInitialized is returned by commands that need a wired container.
var ErrAppNotInitialized = errors.New("app not initialized")

// App holds the CLI application dependencies.
type App struct {
	Container *internalApp.Container
	// InitErr explains why Container is nil.
	InitErr error
}

// NewApp creates a CLI app over container.
func NewApp(container *internalApp.Container) *App {
	return &App{Container: container}
}

var currentApp *App

// SetApp sets the app used by commands.
func SetApp(app *App) {
	currentApp = app
}

// GetApp returns the current app, or nil.
func GetApp() *App {
	return currentApp
}

func requireContainer() (*internalApp.Container, error) {
	app := GetApp()
	if app == nil {
		return nil, ErrAppNotInitialized
	}
	if app.Container == nil {
		if app.InitErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrAppNotInitialized, app.InitErr)
		}
		return nil, ErrAppNotInitialized
	}
	return app.Container, nil
}
