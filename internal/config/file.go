package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a flat YAML mapping of configuration keys. Keys are matched
// case-insensitively against the environment names, so `grpc_addr` fills GRPC_ADDR.
// An empty path yields an empty source; a named file that does not exist is
// an error.
func LoadFile(path string) (EnvMap, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return EnvMap{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return ParseFile(data)
}

func ParseFile(data []byte) (EnvMap, error) {
	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	env := make(EnvMap, len(parsed))
	for key, value := range parsed {
		name := strings.ToUpper(strings.TrimSpace(key))
		if name == "" {
			continue
		}
		switch v := value.(type) {
		case nil:
			continue
		case string:
			env[name] = v
		case bool:
			env[name] = strconv.FormatBool(v)
		case int:
			env[name] = strconv.Itoa(v)
		case float64:
			env[name] = strconv.FormatFloat(v, 'f', -1, 64)
		case []any:
			items := make([]string, 0, len(v))
			for _, item := range v {
				items = append(items, fmt.Sprint(item))
			}
			env[name] = strings.Join(items, ",")
		default:
			return nil, fmt.Errorf("parse config file: unsupported value for %s", key)
		}
	}
	return env, nil
}
