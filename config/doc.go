// Package config loads cropadvisor configuration.
//
// Values come from CROPADVISOR_* environment variables first, then from
// command flags. An optional YAML file named by CROPADVISOR_CONFIG (or
// -config) overrides per-kind max-ages, per-kind system prompts and the
// model. String values in the file may reference environment variables as
// ${VAR}; a reference to an unset variable is an error, and $$ emits a
// literal dollar sign.
package config
