package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key, e.g. SOULSDEX_PG_DSN.
const EnvPrefix = "SOULSDEX"

// ApplyConfig holds configuration for the apply command.
type ApplyConfig struct {
	Genesis           string
	Ops               string
	Out               string
	Results           string
	PGDSN             string
	BatchSize         uint64
	Checkpoint        string
	CheckpointEnabled bool
	ResetCheckpoint   bool
	MaxRetries        int
	RetryBackoff      time.Duration
	StopOnError       bool
	MetricsAddr       string
	EnvFile           string
	LogLevel          string
	Aliases           map[string]string
	Deployment
}

// Deployment overrides genesis addresses, usually from a .env file written
// by the deployment script.
type Deployment struct {
	TokenAAddress string
	TokenBAddress string
	PoolAddress   string
}

// LoadApply merges config file, environment variables, and flags into ApplyConfig.
func LoadApply(cfgFile string, flags *pflag.FlagSet) (ApplyConfig, error) {
	v := newViper()
	v.SetDefault("out", "./data/journal.jsonl")
	v.SetDefault("results", "./data/results.jsonl")
	v.SetDefault("batch-size", uint64(500))
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)

	if err := readConfig(v, cfgFile, flags); err != nil {
		return ApplyConfig{}, err
	}

	cfg := ApplyConfig{
		Genesis:           v.GetString("genesis"),
		Ops:               v.GetString("ops"),
		Out:               v.GetString("out"),
		Results:           v.GetString("results"),
		PGDSN:             v.GetString("pg-dsn"),
		BatchSize:         v.GetUint64("batch-size"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		ResetCheckpoint:   v.GetBool("reset-checkpoint"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		StopOnError:       v.GetBool("stop-on-error"),
		MetricsAddr:       v.GetString("metrics-addr"),
		EnvFile:           v.GetString("env-file"),
		LogLevel:          v.GetString("log-level"),
		Aliases:           getStringMap(v, "alias"),
		Deployment:        readDeployment(v),
	}

	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("log-level", "info")
	v.SetDefault("env-file", ".env")

	// names written by the deployment script
	_ = v.BindEnv("token-a-address", "TOKEN_A_ADDRESS", "INTELLIGENCE_ADDRESS")
	_ = v.BindEnv("token-b-address", "TOKEN_B_ADDRESS", "FAITH_ADDRESS")
	_ = v.BindEnv("pool-address", "DEX_ADDRESS")
	return v
}

func readDeployment(v *viper.Viper) Deployment {
	return Deployment{
		TokenAAddress: v.GetString("token-a-address"),
		TokenBAddress: v.GetString("token-b-address"),
		PoolAddress:   v.GetString("pool-address"),
	}
}

// readConfig binds flags and reads cfgFile, or ./config.* when cfgFile is
// empty and such a file exists.
func readConfig(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) error {
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, v := range typed {
			out[k] = fmt.Sprintf("%v", v)
		}
		return out
	case []string:
		return parseStringMap(strings.Join(typed, ","))
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	if strings.TrimSpace(input) == "" {
		return out
	}
	pairs := strings.Split(input, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}
