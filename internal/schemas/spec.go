package schemas

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
)

const SpecSchemaV1 = "harmonia.schema.v1"

// Spec is the wire form of a user-defined target schema.
type Spec struct {
	Schema      string       `json:"schema" yaml:"schema"`
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Columns     []ColumnSpec `json:"columns" yaml:"columns"`
}

type ColumnSpec struct {
	Name        string          `json:"name" yaml:"name"`
	DataType    string          `json:"data_type" yaml:"data_type"`
	EntityTypes []string        `json:"entity_types,omitempty" yaml:"entity_types,omitempty"`
	MatchMode   string          `json:"match_mode,omitempty" yaml:"match_mode,omitempty"`
	Required    bool            `json:"required,omitempty" yaml:"required,omitempty"`
	Default     *string         `json:"default,omitempty" yaml:"default,omitempty"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Aliases     []string        `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Inferences  []InferenceSpec `json:"inferences,omitempty" yaml:"inferences,omitempty"`
}

type InferenceSpec struct {
	Op       string   `json:"op" yaml:"op"`
	Requires []string `json:"requires,omitempty" yaml:"requires,omitempty"`
	Sep      string   `json:"sep,omitempty" yaml:"sep,omitempty"`
	Value    string   `json:"value,omitempty" yaml:"value,omitempty"`
	Query    string   `json:"query,omitempty" yaml:"query,omitempty"`
}

// ParseSpec decodes and validates a yaml schema spec and converts it to
// its domain form. Column-level defects wrap domain.ErrInvalidColumn so
// the API surface can classify them.
func ParseSpec(input []byte) (domain.Schema, error) {
	var spec Spec
	if err := yaml.Unmarshal(input, &spec); err != nil {
		return domain.Schema{}, fmt.Errorf("decode schema spec: %w", err)
	}
	return spec.ToDomain()
}

// ToDomain validates the spec against the data type catalogue and
// returns the domain schema.
func (s Spec) ToDomain() (domain.Schema, error) {
	if strings.TrimSpace(s.Schema) != SpecSchemaV1 {
		return domain.Schema{}, fmt.Errorf("spec.schema must be %q", SpecSchemaV1)
	}
	if strings.TrimSpace(s.Name) == "" {
		return domain.Schema{}, errors.New("spec.name is required")
	}
	if len(s.Columns) == 0 {
		return domain.Schema{}, errors.New("spec.columns must be non-empty")
	}

	out := domain.Schema{
		Name:        strings.TrimSpace(s.Name),
		Description: strings.TrimSpace(s.Description),
		Columns:     make([]domain.ColumnDefinition, 0, len(s.Columns)),
	}
	for i, col := range s.Columns {
		converted, err := col.toDomain()
		if err != nil {
			return domain.Schema{}, fmt.Errorf("%w: spec.columns[%d]: %v", domain.ErrInvalidColumn, i, err)
		}
		out.Columns = append(out.Columns, converted)
	}
	if err := out.Validate(); err != nil {
		return domain.Schema{}, fmt.Errorf("%w: %v", domain.ErrInvalidColumn, err)
	}
	return out, nil
}

func (c ColumnSpec) toDomain() (domain.ColumnDefinition, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return domain.ColumnDefinition{}, errors.New("name is required")
	}
	dataType := strings.TrimSpace(c.DataType)
	if !KnownDataType(dataType) {
		return domain.ColumnDefinition{}, fmt.Errorf("unknown data type %q", c.DataType)
	}

	def := domain.ColumnDefinition{
		Name:        name,
		DataType:    dataType,
		Required:    c.Required,
		Description: strings.TrimSpace(c.Description),
		Aliases:     trimNonEmpty(c.Aliases),
	}
	if c.Default != nil {
		def.Default = *c.Default
		def.HasDefault = true
	}

	if dataType == domain.DataTypeEntity {
		if len(c.EntityTypes) == 0 {
			return domain.ColumnDefinition{}, errors.New("entity columns require entity_types")
		}
		for _, raw := range c.EntityTypes {
			etype, err := domain.ParseEntityType(raw)
			if err != nil {
				return domain.ColumnDefinition{}, err
			}
			def.EntityTypes = append(def.EntityTypes, etype)
		}
		def.MatchMode = strings.TrimSpace(c.MatchMode)
		if def.MatchMode == "" {
			def.MatchMode = domain.MatchModeAuto
		}
		switch def.MatchMode {
		case domain.MatchModeAuto, domain.MatchModeFreeText, domain.MatchModeXref:
		default:
			return domain.ColumnDefinition{}, fmt.Errorf("unknown match mode %q", c.MatchMode)
		}
	} else {
		if len(c.EntityTypes) > 0 {
			return domain.ColumnDefinition{}, fmt.Errorf("entity_types only apply to %s columns", domain.DataTypeEntity)
		}
		if strings.TrimSpace(c.MatchMode) != "" {
			return domain.ColumnDefinition{}, fmt.Errorf("match_mode only applies to %s columns", domain.DataTypeEntity)
		}
	}

	for i, inf := range c.Inferences {
		converted := domain.InferenceSpec{
			Op:       domain.InferenceOpKind(strings.TrimSpace(inf.Op)),
			Requires: trimNonEmpty(inf.Requires),
			Sep:      inf.Sep,
			Value:    inf.Value,
			Query:    strings.TrimSpace(inf.Query),
		}
		if err := converted.Validate(); err != nil {
			return domain.ColumnDefinition{}, fmt.Errorf("inferences[%d]: %v", i, err)
		}
		def.Inferences = append(def.Inferences, converted)
	}
	return def, nil
}

// SpecFromDomain renders a domain schema back to its wire form, used by
// the schema listing endpoints.
func SpecFromDomain(schema domain.Schema) Spec {
	spec := Spec{
		Schema:      SpecSchemaV1,
		Name:        schema.Name,
		Description: schema.Description,
		Columns:     make([]ColumnSpec, 0, len(schema.Columns)),
	}
	for _, col := range schema.Columns {
		colSpec := ColumnSpec{
			Name:        col.Name,
			DataType:    col.DataType,
			MatchMode:   col.MatchMode,
			Required:    col.Required,
			Description: col.Description,
			Aliases:     append([]string(nil), col.Aliases...),
		}
		for _, etype := range col.EntityTypes {
			colSpec.EntityTypes = append(colSpec.EntityTypes, string(etype))
		}
		if col.HasDefault {
			value := col.Default
			colSpec.Default = &value
		}
		for _, inf := range col.Inferences {
			colSpec.Inferences = append(colSpec.Inferences, InferenceSpec{
				Op:       string(inf.Op),
				Requires: append([]string(nil), inf.Requires...),
				Sep:      inf.Sep,
				Value:    inf.Value,
				Query:    inf.Query,
			})
		}
		spec.Columns = append(spec.Columns, colSpec)
	}
	return spec
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
