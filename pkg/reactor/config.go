package reactor

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed runtime_config.schema.json
var runtimeConfigSchemaDoc string

// RuntimeConfig is the scheduler's external configuration surface:
// fast_forward skips wall-clock waits, keep_alive blocks on the async
// channel instead of exiting when the queue empties, and an optional
// timeout preloads a shutdown event at (timeout, 0). Loaded by
// unmarshalling YAML into an intermediate struct whose timeout is a
// string, then converting that with time.ParseDuration.
type RuntimeConfig struct {
	FastForward bool           `yaml:"fast_forward" json:"fast_forward"`
	KeepAlive   bool           `yaml:"keep_alive" json:"keep_alive"`
	Timeout     *time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// runtimeConfigSchemaDoc (embedded above) is compiled once per call: a
// JSON Schema is loaded under an in-process resource URL, then decoded
// JSON is validated against it before the document is trusted, the same
// schema-then-decode posture this codebase uses for other untrusted
// policy documents.
const runtimeConfigSchemaURL = "https://reactorcore.schemas.local/runtime_config.schema.json"

func compileRuntimeConfigSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(runtimeConfigSchemaURL, strings.NewReader(runtimeConfigSchemaDoc)); err != nil {
		return nil, fmt.Errorf("reactor: load runtime config schema: %w", err)
	}
	return c.Compile(runtimeConfigSchemaURL)
}

// LoadRuntimeConfig reads and validates a RuntimeConfig from a YAML file
// at path. The document is validated against runtimeConfigSchemaDoc
// before being unmarshaled into RuntimeConfig, so a malformed or
// unexpected field is rejected before it can silently default away,
// the same "validate before trusting" posture Handoff.Validate applies
// to the builder-to-runtime handoff.
func LoadRuntimeConfig(path string) (RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeConfig{}, fmt.Errorf("reactor: read runtime config %s: %w", path, err)
	}
	return ParseRuntimeConfig(data)
}

// ParseRuntimeConfig validates and decodes a YAML document already read
// into memory.
func ParseRuntimeConfig(data []byte) (RuntimeConfig, error) {
	var asJSON any
	if err := yaml.Unmarshal(data, &asJSON); err != nil {
		return RuntimeConfig{}, fmt.Errorf("reactor: parse runtime config: %w", err)
	}
	normalized := normalizeForSchema(asJSON)

	schema, err := compileRuntimeConfigSchema()
	if err != nil {
		return RuntimeConfig{}, err
	}
	if err := schema.Validate(normalized); err != nil {
		return RuntimeConfig{}, fmt.Errorf("reactor: runtime config failed validation: %w", err)
	}

	var cfg rawRuntimeConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&cfg); err != nil {
		return RuntimeConfig{}, fmt.Errorf("reactor: decode runtime config: %w", err)
	}
	return cfg.toRuntimeConfig()
}

// rawRuntimeConfig mirrors RuntimeConfig but keeps Timeout as the
// human-written duration string (e.g. "30s") until ParseDuration
// converts it, since yaml.v3 has no native duration type.
type rawRuntimeConfig struct {
	FastForward bool   `yaml:"fast_forward"`
	KeepAlive   bool   `yaml:"keep_alive"`
	Timeout     string `yaml:"timeout,omitempty"`
}

func (r rawRuntimeConfig) toRuntimeConfig() (RuntimeConfig, error) {
	cfg := RuntimeConfig{FastForward: r.FastForward, KeepAlive: r.KeepAlive}
	if r.Timeout != "" {
		d, err := time.ParseDuration(r.Timeout)
		if err != nil {
			return RuntimeConfig{}, fmt.Errorf("reactor: parse timeout %q: %w", r.Timeout, err)
		}
		cfg.Timeout = &d
	}
	return cfg, nil
}

// normalizeForSchema converts the map[interface{}]interface{} values
// yaml.Unmarshal produces for an `any` target into map[string]interface{},
// which jsonschema.Validate requires.
func normalizeForSchema(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = normalizeForSchema(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[fmt.Sprintf("%v", k)] = normalizeForSchema(vv)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = normalizeForSchema(vv)
		}
		return out
	default:
		return val
	}
}

// Options translates the config into Scheduler options.
func (c RuntimeConfig) Options() []SchedulerOption {
	opts := []SchedulerOption{
		WithFastForward(c.FastForward),
		WithKeepAlive(c.KeepAlive),
	}
	if c.Timeout != nil {
		opts = append(opts, WithTimeout(*c.Timeout))
	}
	return opts
}
