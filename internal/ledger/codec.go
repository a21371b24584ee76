package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
)

// Wire form of a column alignment. Operations serialize as a tagged
// union: the kind plus exactly one payload object.

type AlignmentPayload struct {
	ColumnName string             `json:"column_name"`
	Operations []OperationPayload `json:"operations"`
}

type OperationPayload struct {
	Kind       string             `json:"kind"`
	Rename     *RenamePayload     `json:"rename,omitempty"`
	Mapping    *MappingOpPayload  `json:"mapping,omitempty"`
	Inference  *InferencePayload  `json:"inference,omitempty"`
	SetDefault *SetDefaultPayload `json:"set_default,omitempty"`
}

type RenamePayload struct {
	OriginalName string `json:"original_name"`
	NewName      string `json:"new_name"`
}

type MappingOpPayload struct {
	Type     string           `json:"type"`
	Mappings []MappingPayload `json:"mappings"`
}

type MappingPayload struct {
	MappingID       string   `json:"mapping_id"`
	Mention         string   `json:"mention"`
	EntityID        string   `json:"entity_id"`
	EntityName      string   `json:"entity_name"`
	Types           []string `json:"types,omitempty"`
	Score           float64  `json:"score"`
	NormalisedScore float64  `json:"normalised_score"`
}

type InferencePayload struct {
	Type       string             `json:"type"`
	Answer     string             `json:"answer,omitempty"`
	References []ReferencePayload `json:"references,omitempty"`
}

type ReferencePayload struct {
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

type SetDefaultPayload struct {
	Value any `json:"value"`
}

// EncodeAlignment marshals a column alignment for storage.
func EncodeAlignment(alignment *domain.ColumnAlignment) ([]byte, error) {
	if alignment == nil {
		return nil, nil
	}
	return json.Marshal(AlignmentFromDomain(*alignment))
}

// DecodeAlignment unmarshals a stored column alignment. Empty input
// yields nil, matching decisions that carry no alignment.
func DecodeAlignment(raw []byte) (*domain.ColumnAlignment, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var payload AlignmentPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode alignment: %w", err)
	}
	alignment, err := payload.ToDomain()
	if err != nil {
		return nil, err
	}
	return &alignment, nil
}

func AlignmentFromDomain(alignment domain.ColumnAlignment) AlignmentPayload {
	out := AlignmentPayload{
		ColumnName: alignment.ColumnName,
		Operations: make([]OperationPayload, 0, len(alignment.Operations)),
	}
	for _, op := range alignment.Operations {
		out.Operations = append(out.Operations, OperationFromDomain(op))
	}
	return out
}

func (p AlignmentPayload) ToDomain() (domain.ColumnAlignment, error) {
	out := domain.ColumnAlignment{
		ColumnName: p.ColumnName,
		Operations: make([]domain.Operation, 0, len(p.Operations)),
	}
	for i, op := range p.Operations {
		converted, err := op.ToDomain()
		if err != nil {
			return domain.ColumnAlignment{}, fmt.Errorf("operations[%d]: %w", i, err)
		}
		out.Operations = append(out.Operations, converted)
	}
	return out, nil
}

func OperationFromDomain(op domain.Operation) OperationPayload {
	out := OperationPayload{Kind: string(op.Kind)}
	switch op.Kind {
	case domain.OpRename:
		out.Rename = &RenamePayload{
			OriginalName: op.Rename.OriginalName,
			NewName:      op.Rename.NewName,
		}
	case domain.OpMapping:
		mappings := make([]MappingPayload, 0, len(op.Mapping.Mappings))
		for _, m := range op.Mapping.Mappings {
			mappings = append(mappings, MappingPayload{
				MappingID:       m.MappingID,
				Mention:         m.Mention,
				EntityID:        m.EntityID,
				EntityName:      m.EntityName,
				Types:           m.Types,
				Score:           m.Score,
				NormalisedScore: m.NormalisedScore,
			})
		}
		out.Mapping = &MappingOpPayload{Type: string(op.Mapping.Type), Mappings: mappings}
	case domain.OpInference:
		references := make([]ReferencePayload, 0, len(op.Inference.References))
		for _, ref := range op.Inference.References {
			references = append(references, ReferencePayload{Text: ref.Text, URL: ref.URL})
		}
		out.Inference = &InferencePayload{
			Type:       string(op.Inference.Type),
			Answer:     op.Inference.Answer,
			References: references,
		}
	case domain.OpSetDefault:
		out.SetDefault = &SetDefaultPayload{Value: op.SetDefault.Value}
	}
	return out
}

func (p OperationPayload) ToDomain() (domain.Operation, error) {
	out := domain.Operation{Kind: domain.OperationKind(p.Kind)}
	switch out.Kind {
	case domain.OpRename:
		if p.Rename == nil {
			return domain.Operation{}, fmt.Errorf("rename operation missing payload")
		}
		out.Rename = &domain.RenameOp{
			OriginalName: p.Rename.OriginalName,
			NewName:      p.Rename.NewName,
		}
	case domain.OpMapping:
		if p.Mapping == nil {
			return domain.Operation{}, fmt.Errorf("mapping operation missing payload")
		}
		mappings := make([]domain.Mapping, 0, len(p.Mapping.Mappings))
		for _, m := range p.Mapping.Mappings {
			mappings = append(mappings, domain.Mapping{
				MappingID:       m.MappingID,
				Mention:         m.Mention,
				EntityID:        m.EntityID,
				EntityName:      m.EntityName,
				Types:           m.Types,
				Score:           m.Score,
				NormalisedScore: m.NormalisedScore,
			})
		}
		out.Mapping = &domain.MappingOp{Type: domain.MappingType(p.Mapping.Type), Mappings: mappings}
	case domain.OpInference:
		if p.Inference == nil {
			return domain.Operation{}, fmt.Errorf("inference operation missing payload")
		}
		references := make([]domain.Reference, 0, len(p.Inference.References))
		for _, ref := range p.Inference.References {
			references = append(references, domain.Reference{Text: ref.Text, URL: ref.URL})
		}
		out.Inference = &domain.InferenceOp{
			Type:       domain.InferenceType(p.Inference.Type),
			Answer:     p.Inference.Answer,
			References: references,
		}
	case domain.OpSetDefault:
		if p.SetDefault == nil {
			return domain.Operation{}, fmt.Errorf("set_default operation missing payload")
		}
		out.SetDefault = &domain.SetDefaultOp{Value: p.SetDefault.Value}
	default:
		return domain.Operation{}, fmt.Errorf("unknown operation kind %q", p.Kind)
	}
	if err := out.Validate(); err != nil {
		return domain.Operation{}, err
	}
	return out, nil
}
