// Package seed loads provider definitions from a YAML file into the store.
//
// Seeding is idempotent: providers are keyed by code, so re-applying a seed
// file updates existing rows instead of duplicating them.
package seed

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/feedmill/feedmill/internal/store"
)

// Provider is one seeded feed source definition.
type Provider struct {
	Code            string `yaml:"code"`
	Name            string `yaml:"name"`
	MergeKey        string `yaml:"merge_key"`
	FilePattern     string `yaml:"file_pattern"`
	SkipExisting    bool   `yaml:"skip_existing"`
	AutoProcess     bool   `yaml:"auto_process"`
	ScheduleActive  bool   `yaml:"schedule_active"`
	DefaultTemplate string `yaml:"default_template"`
}

// File is the root of a seed document.
type File struct {
	Providers []Provider `yaml:"providers"`
}

// Load reads and validates a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Providers))
	for i, p := range f.Providers {
		code := strings.TrimSpace(p.Code)
		if code == "" {
			return nil, fmt.Errorf("seed provider %d has no code", i+1)
		}
		if _, dup := seen[code]; dup {
			return nil, fmt.Errorf("seed provider code %q appears twice", code)
		}
		seen[code] = struct{}{}
	}
	return &f, nil
}

// Result reports what Apply changed.
type Result struct {
	Created int
	Updated int
}

// Apply upserts every seeded provider by code.
func Apply(ctx context.Context, st *store.Store, f *File) (Result, error) {
	var result Result
	for _, p := range f.Providers {
		existing, err := st.GetProviderByCode(ctx, p.Code)
		if err != nil {
			return result, err
		}
		if existing == nil {
			_, err := st.CreateProvider(ctx, &store.Provider{
				Code:            p.Code,
				Name:            p.Name,
				MergeKey:        p.MergeKey,
				FilePattern:     p.FilePattern,
				SkipExisting:    p.SkipExisting,
				AutoProcess:     p.AutoProcess,
				ScheduleActive:  p.ScheduleActive,
				DefaultTemplate: p.DefaultTemplate,
			})
			if err != nil {
				return result, err
			}
			result.Created++
			continue
		}

		existing.Name = p.Name
		existing.MergeKey = p.MergeKey
		existing.FilePattern = p.FilePattern
		existing.SkipExisting = p.SkipExisting
		existing.AutoProcess = p.AutoProcess
		existing.ScheduleActive = p.ScheduleActive
		existing.DefaultTemplate = p.DefaultTemplate
		if err := st.UpdateProvider(ctx, existing); err != nil {
			return result, err
		}
		result.Updated++
	}
	return result, nil
}
