// Package config provides the settings for replbridge.
//
// Settings are resolved in layers, higher layers overriding lower:
//
//	┌─────────────────────────────┐
//	│  3. Command Line Flags      │  ← Highest priority
//	├─────────────────────────────┤
//	│  2. Environment Variables   │  ← REPLBRIDGE_SHELL, ...
//	├─────────────────────────────┤
//	│  1. Settings File           │  ← ~/.config/replbridge/config.toml
//	├─────────────────────────────┤
//	│  0. Built-in Defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// Options missing from the file keep their defaults. Map options
// (text_shortcuts, enviroment_variables) replace the defaults as a whole.
//
// # Sub-packages
//
//   - watcher: File watching for live reload
//
// # Basic Usage
//
//	overrides := config.NewOverrides()
//	_ = overrides.BindPFlag("shell", cmd.Flags().Lookup("shell"))
//
//	settings, err := config.LoadWithOverrides(path, overrides)
//	if err != nil {
//	    return err
//	}
//
// # Configuration Files
//
// The format follows the file extension: .toml, .yaml/.yml, or .json and
// .sublime-settings. JSON files may contain comments and trailing commas.
//
//	# ~/.config/replbridge/config.toml
//	shell = "python -i"
//	use_shell = true
//	lines_to_suppress = 3
//	prepend_output = " "
//
//	[text_shortcuts]
//	"@" = "##param##"
//	"?" = "help(##param##)"
//
// # Error Handling
//
//   - ErrUnsupportedFormat: the file extension is not recognised
//   - ParseError: the file could not be decoded
//   - ValidationError: an option holds an unusable value
package config
