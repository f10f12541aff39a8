package cli

import (
	"fmt"
	"os"

	"hamster/internal/keyboard"
	"hamster/internal/rime"
	"hamster/internal/tableengine"
)

// runtime is a configured engine behind its manager.
type runtime struct {
	engine  *tableengine.Engine
	manager *rime.Manager
}

func (o *RootOptions) traits() rime.Traits {
	e := o.Config.Engine
	return rime.Traits{
		SharedDataDir:        e.SharedDataDir,
		UserDataDir:          e.UserDataDir,
		DistributionName:     e.DistributionName,
		DistributionCodeName: e.DistributionCodeName,
		DistributionVersion:  e.DistributionVersion,
		AppName:              e.AppName,
	}
}

// startEngine opens the table engine and brings the manager to Ready.
func (o *RootOptions) startEngine() (*runtime, error) {
	if err := o.Config.EnsureDirectories(); err != nil {
		return nil, err
	}

	engine := tableengine.New(
		tableengine.WithLogger(o.component("tableengine")),
		tableengine.WithUserDataDir(o.Config.Engine.UserDataDir),
		tableengine.WithStorePath(o.Config.Store.Path),
	)
	m := rime.NewManager(engine,
		rime.WithLogger(o.component("rime")),
		rime.WithSimplifiedOption(o.Config.Engine.SimplifiedOption),
	)
	if err := m.Configure(o.traits()); err != nil {
		return nil, fmt.Errorf("configure engine: %w", err)
	}
	return &runtime{engine: engine, manager: m}, nil
}

func (r *runtime) close() {
	r.manager.Shutdown()
}

// keyboardConfig loads the keyboard document named by the config, falling
// back to the defaults when the file does not exist.
func (o *RootOptions) keyboardConfig() (*keyboard.Configuration, error) {
	path := o.Config.Keyboard.Path
	if _, err := os.Stat(path); os.IsNotExist(err) {
		o.component("keyboard").Debug("no keyboard document, using defaults", "path", path)
		return keyboard.Default(), nil
	}
	return keyboard.Load(path, keyboard.WithStrictActions(o.Config.Keyboard.Strict))
}
