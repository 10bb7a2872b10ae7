// Package config holds report generation settings. Settings come from an
// optional YAML file layered over built-in defaults; command line flags
// override individual fields afterwards.
//
// Example file:
//
//	columns:
//	  date: [DATE, TIME]
//	  category: [CATEGORIES, CATEGORY]
//	currency: "EUR"
//	output_dir: reports
//	format: xlsx
//	category_order: amount
package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Columns maps each ledger field to the header names that may hold it.
// The first alias found in a header wins.
type Columns struct {
	Date     []string `yaml:"date"`
	Type     []string `yaml:"type"`
	Category []string `yaml:"category"`
	Amount   []string `yaml:"amount"`
	Note     []string `yaml:"note"`
}

// DefaultColumns returns the header names used by known ledger exports.
func DefaultColumns() Columns {
	return Columns{
		Date:     []string{"DATE", "TIME"},
		Type:     []string{"TYPE"},
		Category: []string{"CATEGORIES", "CATEGORY"},
		Amount:   []string{"AMOUNT"},
		Note:     []string{"NOTE", "NOTES", "DESCRIPTION"},
	}
}

// DefaultDateLayouts are tried in order. Day-first layouts come before
// anything else so 03/04/2024 reads as 3 April.
var DefaultDateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04:05",
	"2/1/2006 15:04:05",
	"02/01/2006 15:04",
	"2/1/2006 15:04",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"2.1.2006",
	"02/01/06",
	"2/1/06",
	"02-Jan-2006",
	"2-Jan-2006",
	"02 Jan 2006",
	"2 January 2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// YearRange bounds the years offered by the interactive year selector.
type YearRange struct {
	From int `yaml:"from"`
	To   int `yaml:"to"`
}

// Years returns the range as strings, oldest first.
func (r YearRange) Years() []string {
	var years []string
	for y := r.From; y <= r.To; y++ {
		years = append(years, fmt.Sprintf("%04d", y))
	}
	return years
}

// Config holds report generation settings.
type Config struct {
	Columns       Columns       `yaml:"columns"`
	DateLayouts   []string      `yaml:"date_layouts"`
	Currency      string        `yaml:"currency"`
	OutputDir     string        `yaml:"output_dir"`
	Format        string        `yaml:"format"`
	CategoryOrder string        `yaml:"category_order"`
	StagingDir    string        `yaml:"staging_dir"`
	FetchTimeout  time.Duration `yaml:"fetch_timeout"`
	Years         YearRange     `yaml:"years"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Columns:       DefaultColumns(),
		DateLayouts:   append([]string(nil), DefaultDateLayouts...),
		Currency:      "INR",
		OutputDir:     ".",
		Format:        "pdf",
		CategoryOrder: "first-seen",
		StagingDir:    os.TempDir(),
		FetchTimeout:  30 * time.Second,
		Years:         YearRange{From: 2020, To: 2035},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
// Fields missing from the file keep their default values; a column alias list
// in the file replaces the default list for that field.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var problems []string

	required := []struct {
		name    string
		aliases []string
	}{
		{"columns.date", c.Columns.Date},
		{"columns.type", c.Columns.Type},
		{"columns.category", c.Columns.Category},
		{"columns.amount", c.Columns.Amount},
	}
	for _, r := range required {
		if len(r.aliases) == 0 {
			problems = append(problems, fmt.Sprintf("%s must list at least one header name", r.name))
		}
	}

	if len(c.DateLayouts) == 0 {
		problems = append(problems, "date_layouts must not be empty")
	}

	switch strings.ToLower(c.Format) {
	case "pdf", "xlsx":
	default:
		problems = append(problems, fmt.Sprintf("format %q is not supported, expected pdf or xlsx", c.Format))
	}

	switch strings.ToLower(c.CategoryOrder) {
	case "", "first-seen", "amount":
	default:
		problems = append(problems, fmt.Sprintf("category_order %q is not supported, expected first-seen or amount", c.CategoryOrder))
	}

	if c.FetchTimeout < 0 {
		problems = append(problems, "fetch_timeout must not be negative")
	}

	if c.Years.From > c.Years.To {
		problems = append(problems, fmt.Sprintf("years.from %d is after years.to %d", c.Years.From, c.Years.To))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// contextKey is a private type to avoid key collisions in context.
type contextKey struct{}

// WithContext returns a new context with the Config attached.
func (c *Config) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext retrieves the Config from context.
// Returns a default Config if not found.
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(contextKey{}).(*Config); ok {
		return cfg
	}
	return Default()
}
