// Package config loads flat, tag-annotated option structs from a TOML file,
// WEBCAM_* environment variables and command-line flags, and watches the
// file for changes.
//
// Fields are bound by tags:
//
//	Device string `toml:"camera.device" env:"DEVICE"`
//
// Precedence, highest first: flags set on the command line, environment,
// TOML file, struct defaults.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smazurov/webcam/internal/logging"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "WEBCAM_"

// Load fills opts, a pointer to a struct, from the file named by its Config
// field, then from the environment. Flags the user set on cmd are left
// untouched. A missing file is not an error.
func Load(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: want pointer to struct, got %T", opts)
	}
	v = v.Elem()

	changed := changedFlags(cmd)
	fields := boundFields(v, changed)

	if f := v.FieldByName("Config"); f.IsValid() && f.Kind() == reflect.String && f.String() != "" {
		tree, err := readTree(f.String())
		if err != nil {
			return err
		}
		for _, b := range fields {
			if b.toml == "" {
				continue
			}
			if value, ok := lookup(tree, b.toml); ok {
				if err := setValue(b.value, value); err != nil {
					return fmt.Errorf("config: %s: %w", b.toml, err)
				}
			}
		}
	}

	for _, b := range fields {
		if b.env == "" {
			continue
		}
		raw, ok := os.LookupEnv(EnvPrefix + b.env)
		if !ok || raw == "" {
			continue
		}
		if err := setString(b.value, raw); err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, b.env, err)
		}
	}
	return nil
}

// binding is one settable field with its sources.
type binding struct {
	value reflect.Value
	toml  string
	env   string
}

// boundFields lists the fields of v not overridden by a changed flag.
func boundFields(v reflect.Value, changed map[string]bool) []binding {
	t := v.Type()
	var out []binding
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() || changed[FlagName(sf)] {
			continue
		}
		b := binding{value: v.Field(i), toml: sf.Tag.Get("toml"), env: sf.Tag.Get("env")}
		if b.toml != "" || b.env != "" {
			out = append(out, b)
		}
	}
	return out
}

func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := make(map[string]bool)
	if cmd == nil {
		return changed
	}
	mark := func(f *pflag.Flag) {
		if f.Changed {
			changed[f.Name] = true
		}
	}
	cmd.Flags().VisitAll(mark)
	cmd.PersistentFlags().VisitAll(mark)
	return changed
}

// FlagName returns the command-line name of a field: its name tag, or the
// field name in kebab case ("TimeoutMs" is "timeout-ms", "FixJPEG" is
// "fix-jpeg").
func FlagName(sf reflect.StructField) string {
	if name := sf.Tag.Get("name"); name != "" {
		return name
	}
	return kebab(sf.Name)
}

func kebab(s string) string {
	rs := []rune(s)
	var out []rune
	for i, r := range rs {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(rs[i-1]) || unicode.IsDigit(rs[i-1])
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if prevLower || (unicode.IsUpper(rs[i-1]) && nextLower) {
				out = append(out, '-')
			}
		}
		out = append(out, unicode.ToLower(r))
	}
	return string(out)
}

func readTree(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	var tree map[string]any
	if err := toml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return tree, nil
}

// lookup resolves a dotted key such as "camera.device".
func lookup(tree map[string]any, key string) (any, bool) {
	node := tree
	parts := strings.Split(key, ".")
	for i, part := range parts {
		value, ok := node[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return value, true
		}
		if node, ok = value.(map[string]any); !ok {
			return nil, false
		}
	}
	return nil, false
}

// setValue assigns a decoded TOML value.
func setValue(field reflect.Value, value any) error {
	switch field.Kind() {
	case reflect.String:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("want string, got %T", value)
		}
		field.SetString(s)
	case reflect.Bool:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("want bool, got %T", value)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, ok := value.(int64)
		if !ok {
			return fmt.Errorf("want integer, got %T", value)
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint32:
		n, ok := value.(int64)
		if !ok || n < 0 {
			return fmt.Errorf("want non-negative integer, got %v", value)
		}
		field.SetUint(uint64(n))
	case reflect.Slice:
		items, ok := value.([]any)
		if !ok || field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("want string array, got %T", value)
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		field.Set(reflect.ValueOf(out))
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}

// setString parses an environment value into field.
func setString(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint32:
		n, err := strconv.ParseUint(raw, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Slice:
		parts := strings.Split(raw, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}

// LoadLogging reads the [logging] table: level, format, and per-module
// levels under any other key. Missing or malformed files yield defaults.
func LoadLogging(path string) logging.Config {
	cfg := logging.Config{Level: "info", Format: "text", Modules: make(map[string]string)}
	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}
	var raw struct {
		Logging map[string]any `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return cfg
	}
	for key, value := range raw.Logging {
		s, ok := value.(string)
		if !ok {
			continue
		}
		switch key {
		case "level":
			cfg.Level = s
		case "format":
			cfg.Format = s
		default:
			cfg.Modules[key] = s
		}
	}
	return cfg
}
