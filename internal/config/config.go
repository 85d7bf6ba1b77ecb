package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const (
	ProgramName = "static-listing"

	DefaultInputDir  = "."
	DefaultOutputDir = "public"
	DefaultTitle     = ProgramName
	DefaultBaseURL   = "/"
	DefaultLogLevel  = "info"

	// EnvPrefix namespaces environment overrides, e.g. STATIC_LISTING_OUTPUT
	EnvPrefix = "STATIC_LISTING"

	HiddenPrefix = "."
	VCSDir       = ".git"
)

// UsageError reports a malformed command line, as opposed to a configuration
// that parses but cannot be used.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string {
	return e.Err.Error()
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

type Config struct {
	InputDir      string   `json:"input_dir"`
	OutputDir     string   `json:"output_dir"`
	Title         string   `json:"title"`
	Ignore        []string `json:"ignore"`
	IncludeHidden bool     `json:"include_hidden"`
	BaseURL       string   `json:"base_url"`
	NoLink        bool     `json:"no_link"`
	ManifestDir   string   `json:"manifest_dir"`
	LogLevel      string   `json:"log_level"`
	ConfigFile    string   `json:"config_file"`
	ShowVersion   bool     `json:"-"`

	ignored map[string]struct{}
}

// Load reads flags from args, then environment variables and an optional config
// file, and returns a resolved configuration. Flags set explicitly on the command
// line win over the environment, which wins over the config file.
func Load(args []string) (*Config, error) {
	flags := pflag.NewFlagSet(ProgramName, pflag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] [input-dir]\n\n", ProgramName)
		flags.PrintDefaults()
	}

	flags.StringP("output", "o", DefaultOutputDir, "Directory to write the generated site to")
	flags.StringP("title", "t", DefaultTitle, "Which <title> to give the generated pages")
	flags.StringSliceP("ignore", "i", nil, "Paths relative to the input directory to leave out (comma separated or repeated)")
	flags.BoolP("hidden", "H", false, "Include entries whose name starts with a dot")
	flags.StringP("base-url", "b", DefaultBaseURL, "URL path prefixed to every generated link")
	flags.Bool("no-link", false, "Always copy files instead of hard-linking them")
	flags.String("manifest-dir", "", "Keep the build manifest on disk in this directory")
	flags.String("log-level", DefaultLogLevel, "Log level (debug, info, warn, error)")
	flags.StringP("config", "c", "", "Config file (yaml, toml or json)")
	flags.BoolP("version", "v", false, "Show version information")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, &UsageError{Err: err}
	}

	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	v.SetDefault("input", DefaultInputDir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	if flags.NArg() > 1 {
		return nil, &UsageError{Err: fmt.Errorf("expected at most one input directory, got %d", flags.NArg())}
	}
	if flags.NArg() == 1 {
		v.Set("input", flags.Arg(0))
	}

	config := &Config{
		InputDir:      v.GetString("input"),
		OutputDir:     v.GetString("output"),
		Title:         v.GetString("title"),
		Ignore:        ignoreList(v.Get("ignore")),
		IncludeHidden: v.GetBool("hidden"),
		BaseURL:       v.GetString("base-url"),
		NoLink:        v.GetBool("no-link"),
		ManifestDir:   v.GetString("manifest-dir"),
		LogLevel:      v.GetString("log-level"),
		ConfigFile:    v.GetString("config"),
		ShowVersion:   v.GetBool("version"),
	}

	if err := config.Resolve(); err != nil {
		return nil, err
	}
	return config, nil
}

// ignoreList normalizes the raw ignore value. Environment variables arrive as a
// single comma separated string; flags and config files arrive as lists.
func ignoreList(raw interface{}) []string {
	if s, ok := raw.(string); ok {
		return splitList([]string{s})
	}
	return splitList(cast.ToStringSlice(raw))
}

// splitList flattens comma separated items.
func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Resolve makes the input and output directories absolute, normalizes the base
// URL and computes the ignore set. The ignore set always holds the VCS directory
// and, when the output directory lives inside the input directory, its path.
func (c *Config) Resolve() error {
	if c.InputDir != "" {
		abs, err := filepath.Abs(c.InputDir)
		if err != nil {
			return fmt.Errorf("failed to resolve input directory %s: %w", c.InputDir, err)
		}
		c.InputDir = abs
	}
	if c.OutputDir != "" {
		abs, err := filepath.Abs(c.OutputDir)
		if err != nil {
			return fmt.Errorf("failed to resolve output directory %s: %w", c.OutputDir, err)
		}
		c.OutputDir = abs
	}

	c.BaseURL = normalizeBaseURL(c.BaseURL)

	c.ignored = map[string]struct{}{VCSDir: {}}
	for _, item := range c.Ignore {
		if rel, ok := c.relativeToInput(item); ok {
			c.ignored[rel] = struct{}{}
		}
	}
	if c.InputDir != "" && c.OutputDir != "" {
		if rel, ok := within(c.InputDir, c.OutputDir); ok && rel != "." {
			c.ignored[rel] = struct{}{}
		}
	}
	return nil
}

func (c *Config) relativeToInput(item string) (string, bool) {
	item = strings.TrimSpace(item)
	if item == "" {
		return "", false
	}
	if filepath.IsAbs(item) {
		rel, ok := within(c.InputDir, item)
		if !ok || rel == "." {
			return "", false
		}
		return rel, true
	}
	rel := path.Clean(filepath.ToSlash(item))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}

// within reports whether child equals or lies below parent, returning the
// slash separated relative path.
func within(parent, child string) (string, bool) {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func normalizeBaseURL(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

func (c *Config) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("input directory cannot be empty")
	}
	info, err := os.Stat(c.InputDir)
	if err != nil {
		return fmt.Errorf("input directory %s is not accessible: %w", c.InputDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("input path %s is not a directory", c.InputDir)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if _, ok := within(c.OutputDir, c.InputDir); ok {
		return fmt.Errorf("output directory %s must not be or contain the input directory %s", c.OutputDir, c.InputDir)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return nil
}

// IsIgnored reports whether an input-relative path is in the ignore set.
func (c *Config) IsIgnored(rel string) bool {
	_, ok := c.ignored[path.Clean(filepath.ToSlash(rel))]
	return ok
}

// IsHidden reports whether a base name marks a hidden entry.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, HiddenPrefix)
}

// IgnoredPaths returns the ignore set in sorted order.
func (c *Config) IgnoredPaths() []string {
	paths := make([]string, 0, len(c.ignored))
	for p := range c.ignored {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Level returns the configured zap level, defaulting to info.
func (c *Config) Level() zapcore.Level {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}
