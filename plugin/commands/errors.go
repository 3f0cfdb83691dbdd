package commands

import (
	"errors"
	"fmt"

	"github.com/igne-dev/pluginhost/plugin/values"
)

// Sentinel errors for registration faults. Both are recoverable: the
// offending registration is rejected and the plugin keeps loading.
var (
	// ErrDuplicateCommand is returned when a (plugin, id) pair is already
	// registered.
	ErrDuplicateCommand = errors.New("duplicate command id")

	// ErrHotkeyConflict is returned when the requested chord is already
	// bound by another active command.
	ErrHotkeyConflict = errors.New("hotkey conflict")

	// ErrUnknownCommand is returned when executing a command id nobody
	// registered.
	ErrUnknownCommand = errors.New("unknown command")
)

// DuplicateCommandError reports which command id collided.
type DuplicateCommandError struct {
	Plugin values.PluginID
	ID     string
}

func (e *DuplicateCommandError) Error() string {
	return fmt.Sprintf("command %s:%s is already registered", e.Plugin, e.ID)
}

// Is implements error matching for errors.Is() checks.
func (e *DuplicateCommandError) Is(target error) bool {
	return target == ErrDuplicateCommand
}

// HotkeyConflictError names the command that already owns the chord, so
// the rejection can tell the user who to blame.
type HotkeyConflictError struct {
	Hotkey values.Hotkey
	Owner  string // qualified id of the command holding the binding
}

func (e *HotkeyConflictError) Error() string {
	return fmt.Sprintf("hotkey %s is already bound by %s", e.Hotkey, e.Owner)
}

// Is implements error matching for errors.Is() checks.
func (e *HotkeyConflictError) Is(target error) bool {
	return target == ErrHotkeyConflict
}
