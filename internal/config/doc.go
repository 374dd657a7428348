// Package config loads the JSON configuration shared by irisd and the iris CLI
// and resolves relative paths against the directory of the config file.
package config
