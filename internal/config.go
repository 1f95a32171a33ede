package internal

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/index"
	"github.com/starford/ansuz/internal/scanner"
	"github.com/starford/ansuz/internal/toc"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Corpus CorpusConfig      `yaml:"corpus"`
	TOC    TOCConfig         `yaml:"toc"`
	Schema SchemaConfig      `yaml:"schema"`
	Index  IndexConfig       `yaml:"index"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Corpus.Validate(); err != nil {
		return fmt.Errorf("corpus: %w", err)
	}
	if err := c.TOC.Validate(); err != nil {
		return fmt.Errorf("toc: %w", err)
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// Workers bounds per-document parallelism. Zero means GOMAXPROCS.
	Workers int    `yaml:"workers"`
	Format  string `yaml:"format"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Format == "" {
		c.Format = FormatText
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Min(0), validation.Max(256)),
		validation.Field(&c.Format, validation.In(FormatText, FormatJSON)),
	)
}

// WorkerCount resolves the configured worker bound.
func (c *ApplicationConfig) WorkerCount() int {
	if c.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return c.Workers
}

// CorpusConfig describes where documents live and what the scan skips.
type CorpusConfig struct {
	Root         string   `yaml:"root"`
	Extensions   []string `yaml:"extensions"`
	SkipPrefixes []string `yaml:"skip_prefixes"`
	ExcludeDirs  []string `yaml:"exclude_dirs"`
	Quarantine   []string `yaml:"quarantine"`
	Exclude      []string `yaml:"exclude"`
}

// Validate validates the corpus configuration.
func (c *CorpusConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Extensions, validation.Required, validation.Each(validation.Required)),
	)
}

// ScannerOptions converts the section into scanner options.
func (c *CorpusConfig) ScannerOptions() scanner.Options {
	return scanner.Options{
		Extensions:   c.Extensions,
		SkipPrefixes: c.SkipPrefixes,
		ExcludeDirs:  c.ExcludeDirs,
		Quarantine:   c.Quarantine,
		Exclude:      c.Exclude,
	}
}

// TOCConfig holds the table-of-contents block contract.
type TOCConfig struct {
	StartMarker string `yaml:"start_marker"`
	EndMarker   string `yaml:"end_marker"`
	MaxDepth    int    `yaml:"max_depth"`
}

// Validate validates the TOC configuration.
func (c *TOCConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.StartMarker, validation.Required),
		validation.Field(&c.EndMarker, validation.Required),
		validation.Field(&c.MaxDepth, validation.Min(2), validation.Max(6)),
	); err != nil {
		return err
	}
	if strings.TrimSpace(c.StartMarker) == strings.TrimSpace(c.EndMarker) {
		return fmt.Errorf("start and end markers must differ")
	}
	return nil
}

// Synthesizer builds the TOC synthesizer for this configuration.
func (c *TOCConfig) Synthesizer() *toc.Synthesizer {
	return toc.New(strings.TrimSpace(c.StartMarker), strings.TrimSpace(c.EndMarker), c.MaxDepth)
}

// SchemaConfig extends the built-in front matter schema.
type SchemaConfig struct {
	// RequiredFields are extra required fields without a default.
	RequiredFields []string `yaml:"required_fields"`
	// JSONSchema optionally points at a JSON Schema for additional checks.
	JSONSchema string `yaml:"json_schema"`
}

// IndexConfig controls index projection and export.
type IndexConfig struct {
	Fields     []string `yaml:"fields"`
	ExportPath string   `yaml:"export_path"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			Format:   FormatText,
		},
		Corpus: CorpusConfig{
			Root:         ".",
			Extensions:   []string{".md", ".markdown"},
			SkipPrefixes: []string{"."},
			ExcludeDirs:  []string{"node_modules", "vendor"},
			Quarantine:   []string{"tasks"},
		},
		TOC: TOCConfig{
			StartMarker: toc.DefaultStart,
			EndMarker:   toc.DefaultEnd,
			MaxDepth:    toc.DefaultMaxDepth,
		},
		Index: IndexConfig{
			Fields: append([]string(nil), index.DefaultFields...),
		},
	}
}
