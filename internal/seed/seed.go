// Package seed loads trophy definitions from YAML and creates the missing ones.
package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/aimd54/forum-trophies/internal/condition"
	"github.com/aimd54/forum-trophies/internal/models"
	"github.com/aimd54/forum-trophies/internal/query"
	"github.com/aimd54/forum-trophies/pkg/logger"
)

// File is the top-level layout of a seed file.
type File struct {
	Trophies []TrophyDef `yaml:"trophies"`
}

// TrophyDef describes one trophy.
type TrophyDef struct {
	Title              string         `yaml:"title"`
	Description        string         `yaml:"description"`
	Icon               string         `yaml:"icon"`
	AwardAutomatically bool           `yaml:"award_automatically"`
	Disabled           bool           `yaml:"disabled"`
	ShowOrder          int            `yaml:"show_order"`
	Conditions         []ConditionDef `yaml:"conditions"`
}

// ConditionDef is a condition type plus its type-specific data.
type ConditionDef struct {
	Type string                 `yaml:"type"`
	Data map[string]interface{} `yaml:"data"`
}

// HandlerResolver resolves condition types to handlers.
type HandlerResolver interface {
	Handler(typeID string) (condition.Handler, error)
}

// TrophyStore persists trophies.
type TrophyStore interface {
	GetByTitle(ctx context.Context, title string) (*models.Trophy, error)
	Create(ctx context.Context, trophy *models.Trophy) error
}

// Report lists what Apply did.
type Report struct {
	Created []string
	Skipped []string
}

// Load reads and parses a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes seed YAML, rejecting unknown keys.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &f, nil
}

// Validate checks every definition against the condition catalog. Each
// condition is run through its handler once so malformed data fails here
// rather than during an assignment run.
func (f *File) Validate(resolver HandlerResolver) error {
	var errs []error
	seen := make(map[string]bool, len(f.Trophies))

	for i, def := range f.Trophies {
		if strings.TrimSpace(def.Title) == "" {
			errs = append(errs, fmt.Errorf("trophy #%d: title is required", i+1))
			continue
		}
		if seen[def.Title] {
			errs = append(errs, fmt.Errorf("trophy %q: duplicate title", def.Title))
		}
		seen[def.Title] = true

		conds, err := def.conditions()
		if err != nil {
			errs = append(errs, fmt.Errorf("trophy %q: %w", def.Title, err))
			continue
		}
		for j := range conds {
			handler, err := resolver.Handler(conds[j].ConditionType)
			if err != nil {
				errs = append(errs, fmt.Errorf("trophy %q: %w", def.Title, err))
				continue
			}
			if err := handler.AddUserCondition(&conds[j], query.NewBuilder()); err != nil {
				errs = append(errs, fmt.Errorf("trophy %q: %w", def.Title, err))
			}
		}
	}

	return errors.Join(errs...)
}

func (d *TrophyDef) conditions() ([]models.TrophyCondition, error) {
	conds := make([]models.TrophyCondition, 0, len(d.Conditions))
	for i, c := range d.Conditions {
		var data json.RawMessage
		if c.Data != nil {
			raw, err := json.Marshal(c.Data)
			if err != nil {
				return nil, fmt.Errorf("condition %s: failed to encode data: %w", c.Type, err)
			}
			data = raw
		}
		conds = append(conds, models.TrophyCondition{
			ConditionType: c.Type,
			Data:          data,
			SortOrder:     i,
		})
	}
	return conds, nil
}

// Model converts the definition to a trophy ready to insert.
func (d *TrophyDef) Model() (*models.Trophy, error) {
	conds, err := d.conditions()
	if err != nil {
		return nil, err
	}
	return &models.Trophy{
		Title:              d.Title,
		Description:        d.Description,
		Icon:               d.Icon,
		AwardAutomatically: d.AwardAutomatically,
		IsDisabled:         d.Disabled,
		ShowOrder:          d.ShowOrder,
		Conditions:         conds,
	}, nil
}

// Apply validates f and creates every trophy whose title does not exist
// yet. Nothing is written when validation fails.
func Apply(ctx context.Context, f *File, resolver HandlerResolver, store TrophyStore, log *logger.Logger) (*Report, error) {
	if err := f.Validate(resolver); err != nil {
		return nil, fmt.Errorf("invalid seed file: %w", err)
	}

	report := &Report{}
	for i := range f.Trophies {
		def := &f.Trophies[i]

		_, err := store.GetByTitle(ctx, def.Title)
		if err == nil {
			log.Info().Str("trophy", def.Title).Msg("Trophy already exists, skipping")
			report.Skipped = append(report.Skipped, def.Title)
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return report, fmt.Errorf("failed to look up trophy %q: %w", def.Title, err)
		}

		trophy, err := def.Model()
		if err != nil {
			return report, fmt.Errorf("trophy %q: %w", def.Title, err)
		}
		if err := store.Create(ctx, trophy); err != nil {
			return report, fmt.Errorf("failed to create trophy %q: %w", def.Title, err)
		}

		log.Info().
			Str("trophy", def.Title).
			Uint("trophy_id", trophy.ID).
			Int("conditions", len(trophy.Conditions)).
			Msg("Trophy created")
		report.Created = append(report.Created, def.Title)
	}

	return report, nil
}
