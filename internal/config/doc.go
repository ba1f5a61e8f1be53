// Package config loads the relay configuration from a YAML file and the
// process environment.
//
// Values are resolved in three layers: built-in defaults, the optional YAML
// file, then environment variables. API keys are usually only supplied
// through the environment.
package config
