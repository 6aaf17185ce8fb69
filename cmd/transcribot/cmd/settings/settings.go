package settings

import (
	"transcribot/internal/config"
)

// Bound to the root command's persistent flags.
var (
	ConfigPath string
	Verbose    bool
)

// Load reads settings for a subcommand. Commands that call the remote
// transcription API pass requireAPIKey.
func Load(requireAPIKey bool) (*config.Settings, error) {
	s, err := config.Load(ConfigPath)
	if err != nil {
		return nil, err
	}
	if Verbose {
		s.App.LogLevel = "debug"
	}
	if requireAPIKey {
		s.RequireAPIKey = true
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return s, nil
}
