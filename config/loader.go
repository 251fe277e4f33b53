package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v3"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Loader fills configuration structs from files and environment variables.
type Loader struct {
	envPrefix string
}

// NewLoader creates a loader reading variables named PREFIX_SECTION_FIELD.
func NewLoader(envPrefix string) *Loader {
	return &Loader{envPrefix: envPrefix}
}

// LoadFromFile decodes configPath into config, choosing YAML or JSON by
// extension. An empty path is not an error.
//
// Arguments:
//   - configPath: The file to read.
//   - config: A pointer to the struct to fill.
//
// Returns:
//   - error: An error if the file cannot be read or parsed.
func (l *Loader) LoadFromFile(configPath string, config interface{}) error {
	if configPath == "" {
		return nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	switch ext := strings.ToLower(filepath.Ext(configPath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return errors.Wrapf(err, "failed to parse YAML config file %s", configPath)
		}
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return errors.Wrapf(err, "failed to parse JSON config file %s", configPath)
		}
	default:
		return errors.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
	return nil
}

// LoadFromEnv overrides fields of config from environment variables. The
// variable name is the prefix followed by the upper-cased yaml tags of the
// enclosing fields, joined by underscores, for example
// EAST_DETECTION_SCORE_THRESHOLD. An env tag replaces the yaml tag.
//
// Arguments:
//   - config: A pointer to the struct to fill.
//
// Returns:
//   - error: An error naming the first variable that cannot be parsed.
func (l *Loader) LoadFromEnv(config interface{}) error {
	v := reflect.ValueOf(config)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return errors.New("config must be a non-nil pointer")
	}
	return l.loadStruct(v.Elem(), l.envPrefix)
}

func (l *Loader) loadStruct(value reflect.Value, prefix string) error {
	if value.Kind() != reflect.Struct {
		return nil
	}

	t := value.Type()
	for i := 0; i < value.NumField(); i++ {
		field := value.Field(i)
		sf := t.Field(i)
		if !field.CanSet() {
			continue
		}

		name := sf.Tag.Get("env")
		if name == "" {
			name = strings.Split(sf.Tag.Get("yaml"), ",")[0]
		}
		if name == "" || name == "-" {
			name = sf.Name
		}
		envName := strings.ToUpper(name)
		if prefix != "" {
			envName = prefix + "_" + envName
		}

		if field.Kind() == reflect.Struct {
			if err := l.loadStruct(field, envName); err != nil {
				return err
			}
			continue
		}

		raw, ok := os.LookupEnv(envName)
		if !ok {
			continue
		}
		if err := setFieldFromString(field, raw); err != nil {
			return errors.Wrapf(err, "failed to set %s from %s", sf.Name, envName)
		}
	}
	return nil
}

// setFieldFromString parses value into field according to its kind.
func setFieldFromString(field reflect.Value, value string) error {
	value = strings.TrimSpace(value)

	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return errors.Errorf("invalid duration value: %s", value)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Errorf("invalid bool value: %s", value)
		}
		field.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return errors.Errorf("invalid int value: %s", value)
		}
		field.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return errors.Errorf("invalid uint value: %s", value)
		}
		field.SetUint(n)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return errors.Errorf("invalid float value: %s", value)
		}
		field.SetFloat(f)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return errors.Errorf("unsupported slice type: %s", field.Type())
		}
		var values []string
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		field.Set(reflect.ValueOf(values))

	default:
		return errors.Errorf("unsupported field type: %s", field.Type())
	}
	return nil
}
