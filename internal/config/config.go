package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	FeatureEVM       = "evm"
	FeatureChaincode = "chaincode"
	FeatureCryptoSM  = "crypto_sm"
	FeatureCryptoETH = "crypto_eth"
)

type Config struct {
	DefaultUser      string
	RPCAddr          string
	ExecutorAddr     string
	KeystoreDir      string
	WalletPassphrase string
	ReceiptFormat    string
	CryptoBackend    string
	GRPCAddr         string
	HTTPAddr         string
	BridgeTimeout    time.Duration
	DefaultGasLimit  uint64
	RedisAddr        string
	ReceiptCacheTTL  time.Duration
	JournalDSN       string
	KafkaBrokers     []string
	KafkaTopic       string
	OtelEndpoint     string
	RateLimitRPS     float64
	RateLimitBurst   int
	LogLevel         string
	LogFile          string
	LogMaxSizeMB     int
	LogMaxBackups    int
}

// Features reports the selected capability set in a stable order.
func (c Config) Features() []string {
	return []string{c.ReceiptFormat, c.CryptoBackend}
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return env
}

// Layered consults sources in order; the first source holding a key wins.
type Layered []EnvSource

func (l Layered) Lookup(key string) (string, bool) {
	for _, source := range l {
		if source == nil {
			continue
		}
		if value, ok := source.Lookup(key); ok {
			return value, true
		}
	}
	return "", false
}

func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	receiptFormat, cryptoBackend, err := parseFeatures(source, "DSPACE_FEATURES")
	if err != nil {
		return Config{}, err
	}

	keystoreDir, err := lookupKeystoreDir(source)
	if err != nil {
		return Config{}, err
	}

	bridgeTimeout, err := parseDurationEnv(source, "BRIDGE_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	receiptCacheTTL, err := parseDurationEnv(source, "RECEIPT_CACHE_TTL", time.Hour)
	if err != nil {
		return Config{}, err
	}
	gasLimit, err := parseUintEnv(source, "DEFAULT_GAS_LIMIT", 3_000_000)
	if err != nil {
		return Config{}, err
	}
	rateLimitRPS, err := parseFloatEnv(source, "RATE_LIMIT_RPS", 50)
	if err != nil {
		return Config{}, err
	}
	rateLimitBurst, err := parseUintEnv(source, "RATE_LIMIT_BURST", 100)
	if err != nil {
		return Config{}, err
	}
	logMaxSize, err := parseUintEnv(source, "LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseUintEnv(source, "LOG_MAX_BACKUPS", 3)
	if err != nil {
		return Config{}, err
	}

	httpAddr := "127.0.0.1:8080"
	if raw, ok := source.Lookup("HTTP_ADDR"); ok {
		httpAddr = strings.TrimSpace(raw)
	}

	var kafkaBrokers []string
	if raw, ok := source.Lookup("KAFKA_BROKERS"); ok && strings.TrimSpace(raw) != "" {
		kafkaBrokers, err = parseList(source, "KAFKA_BROKERS", "")
		if err != nil {
			return Config{}, err
		}
	}

	return Config{
		DefaultUser:      lookupTrimmed(source, "CITA_CLOUD_DEFAULT_USER", ""),
		RPCAddr:          lookupTrimmed(source, "CITA_CLOUD_RPC_ADDR", "localhost:30004"),
		ExecutorAddr:     lookupTrimmed(source, "CITA_CLOUD_EXECUTOR_ADDR", "localhost:30005"),
		KeystoreDir:      keystoreDir,
		WalletPassphrase: lookupRaw(source, "WALLET_PASSPHRASE"),
		ReceiptFormat:    receiptFormat,
		CryptoBackend:    cryptoBackend,
		GRPCAddr:         lookupTrimmed(source, "GRPC_ADDR", "127.0.0.1:8000"),
		HTTPAddr:         httpAddr,
		BridgeTimeout:    bridgeTimeout,
		DefaultGasLimit:  gasLimit,
		RedisAddr:        lookupTrimmed(source, "REDIS_ADDR", ""),
		ReceiptCacheTTL:  receiptCacheTTL,
		JournalDSN:       lookupTrimmed(source, "JOURNAL_DSN", ""),
		KafkaBrokers:     kafkaBrokers,
		KafkaTopic:       lookupTrimmed(source, "KAFKA_TOPIC", "dspace-events"),
		OtelEndpoint:     lookupTrimmed(source, "OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		RateLimitRPS:     rateLimitRPS,
		RateLimitBurst:   int(rateLimitBurst),
		LogLevel:         lookupTrimmed(source, "LOG_LEVEL", "info"),
		LogFile:          lookupTrimmed(source, "LOG_FILE", ""),
		LogMaxSizeMB:     int(logMaxSize),
		LogMaxBackups:    int(logMaxBackups),
	}, nil
}

// parseFeatures validates the capability set. Each group admits one member.
func parseFeatures(source EnvSource, key string) (string, string, error) {
	receiptFormat := ""
	cryptoBackend := ""
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return FeatureEVM, FeatureCryptoETH, nil
	}
	for _, item := range strings.Split(raw, ",") {
		feature := strings.ToLower(strings.TrimSpace(item))
		switch feature {
		case "":
			continue
		case FeatureEVM, FeatureChaincode:
			if receiptFormat != "" && receiptFormat != feature {
				return "", "", fmt.Errorf("invalid %s: features `%s` and `%s` are mutually exclusive", key, FeatureEVM, FeatureChaincode)
			}
			receiptFormat = feature
		case FeatureCryptoSM, FeatureCryptoETH:
			if cryptoBackend != "" && cryptoBackend != feature {
				return "", "", fmt.Errorf("invalid %s: features `%s` and `%s` are mutually exclusive", key, FeatureCryptoSM, FeatureCryptoETH)
			}
			cryptoBackend = feature
		default:
			known := []string{FeatureEVM, FeatureChaincode, FeatureCryptoSM, FeatureCryptoETH}
			sort.Strings(known)
			return "", "", fmt.Errorf("invalid %s: unknown feature %q (known: %s)", key, feature, strings.Join(known, ", "))
		}
	}
	if receiptFormat == "" {
		receiptFormat = FeatureEVM
	}
	if cryptoBackend == "" {
		cryptoBackend = FeatureCryptoETH
	}
	return receiptFormat, cryptoBackend, nil
}

func lookupKeystoreDir(source EnvSource) (string, error) {
	if raw, ok := source.Lookup("CITA_CLOUD_KEYSTORE_DIR"); ok && strings.TrimSpace(raw) != "" {
		return strings.TrimSpace(raw), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot find home dir: %w", err)
	}
	return filepath.Join(home, ".cloud-cli"), nil
}

func lookupTrimmed(source EnvSource, key, defaultValue string) string {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	return strings.TrimSpace(raw)
}

func lookupRaw(source EnvSource, key string) string {
	raw, _ := source.Lookup(key)
	return raw
}

func parseUintEnv(source EnvSource, key string, defaultValue uint64) (uint64, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseFloatEnv(source EnvSource, key string, defaultValue float64) (float64, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return value, nil
}

func parseDurationEnv(source EnvSource, key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	trimmed := strings.TrimSpace(raw)
	if trimmed == "0" {
		return 0, nil
	}
	duration, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("invalid %s: negative duration", key)
	}
	return duration, nil
}

func parseList(source EnvSource, key string, defaultValue string) ([]string, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		raw = defaultValue
	}
	items := strings.Split(raw, ",")
	var values []string
	for _, item := range items {
		value := strings.TrimSpace(item)
		if value == "" {
			continue
		}
		values = append(values, value)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s is required", key)
	}
	return values, nil
}
