package domain

import (
	"errors"
	"fmt"
	"strings"
)

// DecisionKind labels a ledger decision. Column alignment is the only
// structured kind; the rest carry free-text content.
type DecisionKind string

const (
	DecisionRetrievalTypeIdentified  DecisionKind = "retrieval_type_identified"
	DecisionExtractionTypeIdentified DecisionKind = "extraction_type_identified"
	DecisionURLRetrieved             DecisionKind = "url_retrieved"
	DecisionFileCopied               DecisionKind = "file_copied"
	DecisionFileFormatIdentified     DecisionKind = "file_format_identified"
	DecisionSchemaIdentified         DecisionKind = "schema_identified"
	DecisionColumnAligned            DecisionKind = "column_aligned"
	DecisionUnableToProcess          DecisionKind = "unable_to_process"
)

// Decision is one append-only record in the decision ledger, scoped to a
// task and, for column_aligned decisions, to a column.
type Decision struct {
	ID        string
	RunID     string
	TaskID    string
	Seq       int64
	Kind      DecisionKind
	Content   string
	Alignment *ColumnAlignment
}

func (d Decision) Validate() error {
	if strings.TrimSpace(d.RunID) == "" {
		return errors.New("run id is required")
	}
	if strings.TrimSpace(d.TaskID) == "" {
		return errors.New("task id is required")
	}
	if d.Kind == "" {
		return errors.New("decision kind is required")
	}
	if d.Kind == DecisionColumnAligned {
		if d.Alignment == nil {
			return errors.New("column_aligned decision requires an alignment")
		}
		return d.Alignment.Validate()
	}
	if d.Alignment != nil {
		return fmt.Errorf("decision kind %q cannot carry an alignment", d.Kind)
	}
	return nil
}

// ColumnAlignment is the ordered trail of operations applied to one
// column. Later operations may depend on the output of earlier ones.
type ColumnAlignment struct {
	ColumnName string
	Operations []Operation
}

func (a ColumnAlignment) Validate() error {
	if strings.TrimSpace(a.ColumnName) == "" {
		return errors.New("column name is required")
	}
	for i, op := range a.Operations {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("operation[%d]: %w", i, err)
		}
	}
	return nil
}

// OperationKind tags the Operation union.
type OperationKind string

const (
	OpRename     OperationKind = "rename"
	OpMapping    OperationKind = "mapping"
	OpInference  OperationKind = "inference"
	OpSetDefault OperationKind = "set_default"
)

// Operation is one atomic transformation within a column alignment.
// Exactly one payload, selected by Kind, is set; Validate enforces the
// invariant so consumers can switch on Kind exhaustively.
type Operation struct {
	Kind       OperationKind
	Rename     *RenameOp
	Mapping    *MappingOp
	Inference  *InferenceOp
	SetDefault *SetDefaultOp
}

func (o Operation) Validate() error {
	set := 0
	if o.Rename != nil {
		set++
	}
	if o.Mapping != nil {
		set++
	}
	if o.Inference != nil {
		set++
	}
	if o.SetDefault != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("operation must carry exactly one payload, got %d", set)
	}
	switch o.Kind {
	case OpRename:
		if o.Rename == nil {
			return errors.New("rename operation missing payload")
		}
	case OpMapping:
		if o.Mapping == nil {
			return errors.New("mapping operation missing payload")
		}
		return o.Mapping.Validate()
	case OpInference:
		if o.Inference == nil {
			return errors.New("inference operation missing payload")
		}
		return o.Inference.Validate()
	case OpSetDefault:
		if o.SetDefault == nil {
			return errors.New("set_default operation missing payload")
		}
	default:
		return fmt.Errorf("unknown operation kind %q", o.Kind)
	}
	return nil
}

func NewRenameOp(originalName, newName string) Operation {
	return Operation{Kind: OpRename, Rename: &RenameOp{OriginalName: originalName, NewName: newName}}
}

func NewMappingOp(mappingType MappingType, mappings []Mapping) Operation {
	return Operation{Kind: OpMapping, Mapping: &MappingOp{Type: mappingType, Mappings: mappings}}
}

func NewDerivedOp() Operation {
	return Operation{Kind: OpInference, Inference: &InferenceOp{Type: InferenceDerived}}
}

func NewExtractedOp(answer string, references []Reference) Operation {
	return Operation{Kind: OpInference, Inference: &InferenceOp{
		Type:       InferenceExtracted,
		Answer:     answer,
		References: references,
	}}
}

func NewSetDefaultOp(value any) Operation {
	return Operation{Kind: OpSetDefault, SetDefault: &SetDefaultOp{Value: value}}
}

// RenameOp maps a source column name onto its canonical name.
type RenameOp struct {
	OriginalName string
	NewName      string
}

// MappingType distinguishes free-text resolution from xref lookup.
type MappingType string

const (
	MappingFreeText MappingType = "free_text"
	MappingXref     MappingType = "xref"
)

// MappingOp records the mention-to-entity mappings applied to a column.
type MappingOp struct {
	Type     MappingType
	Mappings []Mapping
}

func (m MappingOp) Validate() error {
	if m.Type != MappingFreeText && m.Type != MappingXref {
		return fmt.Errorf("unknown mapping type %q", m.Type)
	}
	return nil
}

// InferenceType distinguishes columns derived from present columns from
// columns extracted out of external context.
type InferenceType string

const (
	InferenceDerived   InferenceType = "derived"
	InferenceExtracted InferenceType = "extracted"
)

// Reference is a supporting source for an extracted answer.
type Reference struct {
	Text string
	URL  string
}

// InferenceOp records how a missing column was filled in.
type InferenceOp struct {
	Type       InferenceType
	Answer     string
	References []Reference
}

func (i InferenceOp) Validate() error {
	switch i.Type {
	case InferenceDerived:
		if i.Answer != "" || len(i.References) > 0 {
			return errors.New("derived inference carries no payload")
		}
	case InferenceExtracted:
		if strings.TrimSpace(i.Answer) == "" {
			return errors.New("extracted inference requires an answer")
		}
	default:
		return fmt.Errorf("unknown inference type %q", i.Type)
	}
	return nil
}

// SetDefaultOp records a schema default applied to an absent column.
type SetDefaultOp struct {
	Value any
}

// Mapping links one observed mention to a canonical entity. Mention and
// MappingID are stable; the entity fields change only through the
// explicit correction path.
type Mapping struct {
	MappingID       string
	Mention         string
	EntityID        string
	EntityName      string
	Types           []string
	Score           float64
	NormalisedScore float64
}

func (m Mapping) Validate() error {
	if strings.TrimSpace(m.MappingID) == "" {
		return errors.New("mapping id is required")
	}
	if strings.TrimSpace(m.Mention) == "" {
		return errors.New("mention is required")
	}
	if m.NormalisedScore < 0 || m.NormalisedScore > 1 {
		return fmt.Errorf("normalised score %f outside [0,1]", m.NormalisedScore)
	}
	return nil
}
