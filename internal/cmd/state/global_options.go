package state

import "path/filepath"

const defaultConfigFileName = "config.yaml"

// GlobalOptions contains global config values that apply for all k6streams sub-commands.
type GlobalOptions struct {
	ConfigFilePath string
	Quiet          bool
	NoColor        bool
	LogOutput      string
	LogFormat      string
	Verbose        bool
}

// GetDefaultGlobalOptions returns the default global flags.
func GetDefaultGlobalOptions(confDir string) GlobalOptions {
	return GlobalOptions{
		ConfigFilePath: filepath.Join(confDir, "k6streams", defaultConfigFileName),
		LogOutput:      "stderr",
	}
}

func consolidateGlobalFlags(defaultFlags GlobalOptions, env map[string]string) GlobalOptions {
	result := defaultFlags

	if val, ok := env["K6STREAMS_CONFIG"]; ok {
		result.ConfigFilePath = val
	}
	if val, ok := env["K6STREAMS_LOG_OUTPUT"]; ok {
		result.LogOutput = val
	}
	if val, ok := env["K6STREAMS_LOG_FORMAT"]; ok {
		result.LogFormat = val
	}
	if env["K6STREAMS_NO_COLOR"] != "" {
		result.NoColor = true
	}
	// Support https://no-color.org/, even an empty value disables the color output.
	if _, ok := env["NO_COLOR"]; ok {
		result.NoColor = true
	}
	if env["K6STREAMS_QUIET"] != "" {
		result.Quiet = true
	}
	return result
}
