package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/maltedev/marketplace-harvester/internal/models"
)

// LoadFilter reads the filter config file. A missing file is created with
// defaults and created is true. An existing file is rewritten in normalized
// form so keys added since it was written show up with their defaults.
func LoadFilter(path string) (spec models.FilterSpec, created bool, err error) {
	defaults := models.DefaultFilterSpec()

	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		if err := WriteFilter(path, defaults); err != nil {
			return spec, false, err
		}
		return defaults, true, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	setFilterDefaults(v, defaults)

	if err := v.ReadInConfig(); err != nil {
		return spec, false, fmt.Errorf("failed to read filter config: %w", err)
	}

	if err := v.Unmarshal(&spec); err != nil {
		return spec, false, fmt.Errorf("failed to decode filter config: %w", err)
	}
	if spec.TitleExcludes == nil {
		spec.TitleExcludes = []string{}
	}

	if err := spec.Validate(); err != nil {
		return spec, false, fmt.Errorf("invalid filter config %s: %w", path, err)
	}

	if err := WriteFilter(path, spec); err != nil {
		return spec, false, err
	}

	return spec, false, nil
}

// WriteFilter stores spec as indented JSON, replacing the file atomically.
func WriteFilter(path string, spec models.FilterSpec) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(spec, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode filter config: %w", err)
	}

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write filter config: %w", err)
	}

	return os.Rename(tmpFile, path)
}

func setFilterDefaults(v *viper.Viper, d models.FilterSpec) {
	v.SetDefault("filter_judul", d.TitleExcludes)
	v.SetDefault("price_min", d.PriceMin)
	v.SetDefault("price_max", d.PriceMax)
	v.SetDefault("min_sold", d.MinSold)
	v.SetDefault("max_sold", d.MaxSold)
	v.SetDefault("min_stock", d.MinStock)
	v.SetDefault("max_stock", d.MaxStock)
	v.SetDefault("min_rating", d.MinRating)
	v.SetDefault("max_page_scrape", d.MaxPageScrape)
	v.SetDefault("name_space", d.Namespace)
	v.SetDefault("sort_by", d.SortBy)
}
