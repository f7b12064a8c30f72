// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation,
// which is how secrets such as the metadata API key and the Redis password are supplied.
package config
