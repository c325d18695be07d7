// Package config loads busser settings from defaults, an optional YAML file,
// BUSSER_* environment variables and command-line flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/bowmanjd/busser/internal/parser/csv"
)

// EnvPrefix marks environment variables read into the config:
// BUSSER_LOG_LEVEL sets log_level.
const EnvPrefix = "BUSSER_"

// Default file names looked up in the working directory.
var defaultFiles = []string{"busser.yaml", "busser.yml"}

// Config holds every setting that is not a per-command argument.
type Config struct {
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// Metrics selects the metrics backend: "none" or "datadog".
	Metrics     string `koanf:"metrics"`
	MetricsTags string `koanf:"metrics_tags"`

	// Input dialect. Separators accept a character, an escape such as "\t",
	// a name ("tab", "comma") or a hex byte ("0x1f").
	Delimiter  string `koanf:"delimiter"`
	Quote      string `koanf:"quote"`
	Terminator string `koanf:"terminator"` // "crlf" or empty for any line ending
	Encoding   string `koanf:"encoding"`

	// bcp output separators; empty selects 0x1F and 0x1E.
	FieldSeparator string `koanf:"field_separator"`
	RowSeparator   string `koanf:"row_separator"`

	PageSize int `koanf:"page_size"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		LogLevel:  "warn",
		LogFormat: "text",
		Metrics:   "none",
		Delimiter: ",",
		Quote:     `"`,
		Encoding:  "utf-8",
	}
}

// flagKeys maps flag names to config keys. Flags not listed are command
// arguments and stay out of the config.
var flagKeys = map[string]string{
	"log-level":    "log_level",
	"log-format":   "log_format",
	"metrics":      "metrics",
	"metrics-tags": "metrics_tags",
	"delimiter":    "delimiter",
	"quote":        "quote",
	"terminator":   "terminator",
	"encoding":     "encoding",
	"field-sep":    "field_separator",
	"row-sep":      "row_separator",
	"pagesize":     "page_size",
}

// Load builds the configuration.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
//
// cfgFile names the YAML file; when empty, busser.yaml or busser.yml in the
// working directory is used if present. Only flags the user actually set
// are applied. It returns the config file used, if any.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, string, error) {
	k := koanf.New(".")

	d := Defaults()
	if err := k.Load(confmap.Provider(map[string]any{
		"log_level":  d.LogLevel,
		"log_format": d.LogFormat,
		"metrics":    d.Metrics,
		"delimiter":  d.Delimiter,
		"quote":      d.Quote,
		"encoding":   d.Encoding,
	}, "."), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load defaults: %w", err)
	}

	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, "", fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, "", fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, "", fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, used, nil
}

// findConfigFile returns explicit, or the first default file that exists.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range defaultFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Validate checks the values that have a fixed vocabulary.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Metrics) {
	case "", "none", "datadog":
	default:
		return fmt.Errorf("invalid metrics backend %q (want none or datadog)", c.Metrics)
	}
	if c.PageSize < 0 {
		return fmt.Errorf("invalid page_size %d", c.PageSize)
	}
	if _, err := c.Scanner(false); err != nil {
		return err
	}
	if _, err := ParseSeparator(c.FieldSeparator); err != nil {
		return fmt.Errorf("field_separator: %w", err)
	}
	if _, err := ParseSeparator(c.RowSeparator); err != nil {
		return fmt.Errorf("row_separator: %w", err)
	}
	return nil
}

// Scanner returns the input dialect. ascii selects the 0x1F/0x1E dialect
// and ignores the delimiter and terminator settings.
func (c *Config) Scanner(ascii bool) (csv.Config, error) {
	var sc csv.Config
	if ascii {
		sc = csv.ASCIIDelimited()
	} else {
		var err error
		if sc.Delimiter, err = parseByte(c.Delimiter); err != nil {
			return sc, fmt.Errorf("delimiter: %w", err)
		}
		if t := strings.ToLower(strings.TrimSpace(c.Terminator)); t != "" && t != "crlf" {
			if sc.Terminator, err = parseByte(c.Terminator); err != nil {
				return sc, fmt.Errorf("terminator: %w", err)
			}
		}
	}
	q, err := parseByte(c.Quote)
	if err != nil {
		return sc, fmt.Errorf("quote: %w", err)
	}
	sc.Quote = q
	sc.Encoding = c.Encoding
	return sc, nil
}

// Separators returns the bcp field and row separators; nil means default.
func (c *Config) Separators() (field, row []byte, err error) {
	if field, err = ParseSeparator(c.FieldSeparator); err != nil {
		return nil, nil, fmt.Errorf("field_separator: %w", err)
	}
	if row, err = ParseSeparator(c.RowSeparator); err != nil {
		return nil, nil, fmt.Errorf("row_separator: %w", err)
	}
	return field, row, nil
}

var separatorNames = map[string]string{
	"tab":       "\t",
	"comma":     ",",
	"pipe":      "|",
	"semicolon": ";",
	"newline":   "\n",
	"crlf":      "\r\n",
	"unit":      "\x1f",
	"record":    "\x1e",
}

// ParseSeparator decodes a separator setting into bytes. Empty yields nil.
func ParseSeparator(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	if v, ok := separatorNames[strings.ToLower(s)]; ok {
		return []byte(v), nil
	}
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		n, err := strconv.ParseUint(s[2:], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid hex byte %q", s)
		}
		return []byte{byte(n)}, nil
	}
	if strings.ContainsRune(s, '\\') {
		u, err := strconv.Unquote(`"` + strings.ReplaceAll(s, `"`, `\"`) + `"`)
		if err != nil {
			return nil, fmt.Errorf("invalid escape in %q", s)
		}
		return []byte(u), nil
	}
	return []byte(s), nil
}

// parseByte is ParseSeparator restricted to exactly one byte.
func parseByte(s string) (byte, error) {
	b, err := ParseSeparator(s)
	if err != nil {
		return 0, err
	}
	if len(b) != 1 {
		return 0, fmt.Errorf("%q is not a single byte", s)
	}
	return b[0], nil
}
