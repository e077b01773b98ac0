package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/cropadvisor/artifact"
)

// File is the optional YAML configuration file.
type File struct {
	// Model overrides the chat model.
	Model string `yaml:"model"`

	// BaseURL overrides the chat endpoint.
	BaseURL string `yaml:"base_url"`

	// MaxAge overrides the store max-age per kind, as Go durations
	// ("24h", "90m"). "0" disables the store tier for a kind.
	MaxAge map[string]string `yaml:"max_age"`

	// Prompts overrides the system prompt per kind, including "merge".
	Prompts map[string]string `yaml:"prompts"`
}

// ParseFile decodes and expands a YAML config payload.
func ParseFile(data []byte) (File, error) {
	var f File
	if len(bytes.TrimSpace(data)) == 0 {
		return f, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, nil
		}
		return File{}, fmt.Errorf("%w: decode: %v", ErrInvalidFile, err)
	}
	if err := f.expand(); err != nil {
		return File{}, err
	}
	if _, err := f.MaxAges(); err != nil {
		return File{}, err
	}
	if _, err := f.PromptOverrides(); err != nil {
		return File{}, err
	}
	return f, nil
}

// LoadFile reads and parses the config file at path.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("%w: read %s: %v", ErrInvalidFile, path, err)
	}
	f, err := ParseFile(data)
	if err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// MaxAges returns the parsed max-age overrides.
func (f File) MaxAges() (map[artifact.Kind]time.Duration, error) {
	if len(f.MaxAge) == 0 {
		return nil, nil
	}
	out := make(map[artifact.Kind]time.Duration, len(f.MaxAge))
	for name, raw := range f.MaxAge {
		kind, err := artifact.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("%w: max_age: %v", ErrInvalidFile, err)
		}
		d, err := time.ParseDuration(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: max_age.%s: %v", ErrInvalidFile, name, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("%w: max_age.%s is negative", ErrInvalidFile, name)
		}
		out[kind] = d
	}
	return out, nil
}

// PromptOverrides returns the prompt overrides keyed by kind. "merge" is
// accepted alongside the artifact kinds.
func (f File) PromptOverrides() (map[artifact.Kind]string, error) {
	if len(f.Prompts) == 0 {
		return nil, nil
	}
	out := make(map[artifact.Kind]string, len(f.Prompts))
	for name, prompt := range f.Prompts {
		kind := artifact.Kind(strings.ToLower(strings.TrimSpace(name)))
		if kind != artifact.KindMerge {
			parsed, err := artifact.ParseKind(name)
			if err != nil {
				return nil, fmt.Errorf("%w: prompts: %v", ErrInvalidFile, err)
			}
			kind = parsed
		}
		if strings.TrimSpace(prompt) == "" {
			return nil, fmt.Errorf("%w: prompts.%s is empty", ErrInvalidFile, name)
		}
		out[kind] = prompt
	}
	return out, nil
}

func (f *File) expand() error {
	var err error
	if f.Model, err = ExpandEnvStrict(f.Model); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if f.BaseURL, err = ExpandEnvStrict(f.BaseURL); err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	for name, prompt := range f.Prompts {
		if f.Prompts[name], err = ExpandEnvStrict(prompt); err != nil {
			return fmt.Errorf("prompts.%s: %w", name, err)
		}
	}
	return nil
}
