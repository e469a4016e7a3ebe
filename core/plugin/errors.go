package plugin

import (
	"errors"
	"fmt"
)

var ErrPluginResolution = errors.New("plugin resolution failed")

// PluginError reports that no instance of Capability could be produced for
// TypeID. Err holds the underlying cause, if any.
type PluginError struct {
	Capability string
	TypeID     string
	Reason     string
	Err        error
}

func (e *PluginError) Error() string {
	msg := fmt.Sprintf("plugin: %s %q: %s", e.Capability, e.TypeID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PluginError) Unwrap() error { return e.Err }

func (e *PluginError) Is(target error) bool { return target == ErrPluginResolution }
