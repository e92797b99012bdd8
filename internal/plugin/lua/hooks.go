package lua

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"pkt.systems/pslog"
)

// Hook function names looked up in the script.
const (
	CommandHook = "on_command"
	OutputHook  = "on_output"
)

// Hooks runs the on_command and on_output functions of a user script.
//
// Each hook receives the text as its only argument. Returning nil keeps
// the text, returning a string replaces it, and on_command may return
// false to stop the command from being sent. A script may define either
// hook, both, or neither.
type Hooks struct {
	state      *State
	log        pslog.Logger
	hasCommand bool
	hasOutput  bool
}

// LoadHooks runs the script at path and binds the hooks it defines.
// Lua print output goes to log at info level.
func LoadHooks(path string, log pslog.Logger, opts ...StateOption) (*Hooks, error) {
	opts = append([]StateOption{WithPrint(func(msg string) {
		log.Info("hook print", "message", msg)
	})}, opts...)

	state := NewState(opts...)
	if err := state.DoFile(path); err != nil {
		_ = state.Close()
		return nil, fmt.Errorf("load hook script %s: %w", path, err)
	}

	h := &Hooks{
		state:      state,
		log:        log,
		hasCommand: state.HasFunction(CommandHook),
		hasOutput:  state.HasFunction(OutputHook),
	}
	log.Info("hook script loaded", "path", path, "on_command", h.hasCommand, "on_output", h.hasOutput)
	return h, nil
}

// OnCommand rewrites a command before it is sent.
func (h *Hooks) OnCommand(text string) (string, error) {
	if !h.hasCommand {
		return text, nil
	}
	return h.call(CommandHook, text, true)
}

// OnOutput rewrites an output chunk before it is formatted.
func (h *Hooks) OnOutput(chunk string) (string, error) {
	if !h.hasOutput {
		return chunk, nil
	}
	return h.call(OutputHook, chunk, false)
}

// Close releases the script's Lua state.
func (h *Hooks) Close() error {
	return h.state.Close()
}

func (h *Hooks) call(name, text string, mayReject bool) (string, error) {
	results, err := h.state.Call(name, lua.LString(text))
	if err != nil {
		return text, fmt.Errorf("%s: %w", name, err)
	}
	if len(results) == 0 {
		return text, nil
	}

	switch v := results[0].(type) {
	case lua.LString:
		return string(v), nil
	case lua.LBool:
		if !bool(v) && mayReject {
			return text, ErrCommandRejected
		}
		if bool(v) {
			return text, nil
		}
	}
	if results[0] == lua.LNil {
		return text, nil
	}
	return text, fmt.Errorf("%s returned %s: %w", name, results[0].Type(), ErrBadHookResult)
}
