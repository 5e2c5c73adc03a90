package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Codec     CodecConfig     `mapstructure:"codec"`
	Vocab     VocabConfig     `mapstructure:"vocab"`
	Predictor PredictorConfig `mapstructure:"predictor"`
	Batch     BatchConfig     `mapstructure:"batch"`
	LogLevel  string          `mapstructure:"log_level"`
}

type CodecConfig struct {
	Backend   string `mapstructure:"backend"`
	Model     string `mapstructure:"model"`
	Precision int    `mapstructure:"precision"`
	VocabMode string `mapstructure:"vocab_mode"`
	Case      string `mapstructure:"case"`
	NFC       bool   `mapstructure:"nfc"`
}

type VocabConfig struct {
	Path         string `mapstructure:"path"`
	MaxSize      int    `mapstructure:"max_size"`
	MinWeight    int    `mapstructure:"min_weight"`
	EscapeWeight int    `mapstructure:"escape_weight"`
}

type PredictorConfig struct {
	CacheSize int     `mapstructure:"cache_size"`
	Alpha     float64 `mapstructure:"alpha"`
	Beta      float64 `mapstructure:"beta"`
	Depth     int     `mapstructure:"depth"`
}

type BatchConfig struct {
	Workers int `mapstructure:"workers"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Codec: CodecConfig{
			Backend:   BackendRange,
			Model:     ModelStatic,
			Precision: 16,
			VocabMode: VocabModeAbsent,
			Case:      CasePreserve,
			NFC:       false,
		},
		Vocab: VocabConfig{
			Path:         "models/vocab.json",
			MaxSize:      16384,
			MinWeight:    2,
			EscapeWeight: 0,
		},
		Predictor: PredictorConfig{
			CacheSize: 4096,
			Alpha:     0.1,
			Beta:      0.5,
			Depth:     0,
		},
		Batch: BatchConfig{
			Workers: 4,
		},
		LogLevel: "info",
	}
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"backend":       "codec.backend",
	"model":         "codec.model",
	"precision":     "codec.precision",
	"vocab-mode":    "codec.vocab_mode",
	"case":          "codec.case",
	"nfc":           "codec.nfc",
	"vocab":         "vocab.path",
	"max-size":      "vocab.max_size",
	"min-weight":    "vocab.min_weight",
	"escape-weight": "vocab.escape_weight",
	"cache-size":    "predictor.cache_size",
	"alpha":         "predictor.alpha",
	"beta":          "predictor.beta",
	"depth":         "predictor.depth",
	"workers":       "batch.workers",
	"log-level":     "log_level",
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("backend", defaults.Codec.Backend, "Entropy coder (range|prefix)")
	fs.String("model", defaults.Codec.Model, "Probability source of the range coder (static|adaptive|ctw)")
	fs.Int("precision", defaults.Codec.Precision, "Bits of precision of adaptive tables")
	fs.String("vocab-mode", defaults.Codec.VocabMode, "Vocabulary in artifacts (absent|embedded|compressed)")
	fs.String("case", defaults.Codec.Case, "Case policy of the tokenizer (preserve|lowercase)")
	fs.Bool("nfc", defaults.Codec.NFC, "Normalize text to Unicode NFC before tokenizing")
	fs.String("vocab", defaults.Vocab.Path, "Path to vocabulary JSON file")
	fs.Int("max-size", defaults.Vocab.MaxSize, "Maximum number of trained tokens")
	fs.Int("min-weight", defaults.Vocab.MinWeight, "Minimum weight of a trained token")
	fs.Int("escape-weight", defaults.Vocab.EscapeWeight, "Weight of the escape symbol, 0 to derive it from dropped tokens")
	fs.Int("cache-size", defaults.Predictor.CacheSize, "Number of cached predictor contexts, 0 to disable")
	fs.Float64("alpha", defaults.Predictor.Alpha, "Unigram weight of the adaptive predictor")
	fs.Float64("beta", defaults.Predictor.Beta, "Bigram weight of the adaptive predictor")
	fs.Int("depth", defaults.Predictor.Depth, "Context bits of the ctw predictor, 0 for two symbols")
	fs.Int("workers", defaults.Batch.Workers, "Parallel sessions for multiple files")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("TOKCODEC")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrap(err, "read config file")
		}
	} else {
		v.SetConfigName("tokcodec")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, errors.Wrap(err, "read config file")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("codec.backend", c.Codec.Backend)
	v.SetDefault("codec.model", c.Codec.Model)
	v.SetDefault("codec.precision", c.Codec.Precision)
	v.SetDefault("codec.vocab_mode", c.Codec.VocabMode)
	v.SetDefault("codec.case", c.Codec.Case)
	v.SetDefault("codec.nfc", c.Codec.NFC)
	v.SetDefault("vocab.path", c.Vocab.Path)
	v.SetDefault("vocab.max_size", c.Vocab.MaxSize)
	v.SetDefault("vocab.min_weight", c.Vocab.MinWeight)
	v.SetDefault("vocab.escape_weight", c.Vocab.EscapeWeight)
	v.SetDefault("predictor.cache_size", c.Predictor.CacheSize)
	v.SetDefault("predictor.alpha", c.Predictor.Alpha)
	v.SetDefault("predictor.beta", c.Predictor.Beta)
	v.SetDefault("predictor.depth", c.Predictor.Depth)
	v.SetDefault("batch.workers", c.Batch.Workers)
	v.SetDefault("log_level", c.LogLevel)
}

// bindFlags ties each registered flag to its nested key, so that flags, env vars and config files all address the same key.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return errors.Wrapf(err, "bind flag %s", name)
		}
	}
	return nil
}
