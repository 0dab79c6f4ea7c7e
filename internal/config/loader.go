package config

// LoadFromEnv reads the process environment, layered over the optional YAML file.
func LoadFromEnv(configPath string) (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}
	env := FromEnviron()
	if configPath == "" {
		configPath, _ = env.Lookup("CONFIG_FILE")
	}
	file, err := LoadFile(configPath)
	if err != nil {
		return Config{}, err
	}
	return Load(Layered{env, file})
}
