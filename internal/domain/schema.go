package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DataTypeParamOption is one selectable value of a data type parameter.
type DataTypeParamOption struct {
	Name        string
	Value       string
	Description string
}

// DataTypeParam is a configurable knob on a column data type, e.g. the
// accepted entity types of an entity column.
type DataTypeParam struct {
	Key           string
	Name          string
	Options       []DataTypeParamOption
	AllowMultiple bool
	Default       string
}

// DataType describes one entry of the fixed column data type catalogue.
type DataType struct {
	Key         string
	Name        string
	Description string
	Params      []DataTypeParam
}

// Data type catalogue keys.
const (
	DataTypeString       = "string"
	DataTypeInt64        = "int64"
	DataTypeInt32        = "int32"
	DataTypeInt16        = "int16"
	DataTypeInt8         = "int8"
	DataTypeUint64       = "uint64"
	DataTypeUint32       = "uint32"
	DataTypeUint16       = "uint16"
	DataTypeUint8        = "uint8"
	DataTypeFloat64      = "float64"
	DataTypeFloat32      = "float32"
	DataTypeDecimal      = "decimal"
	DataTypeDate         = "date"
	DataTypeDateTime     = "datetime"
	DataTypeBool         = "bool"
	DataTypeEntity       = "entity"
	DataTypeAminoAcidSeq = "amino_acid_sequence"
	DataTypeNucleotide   = "nucleotide_sequence"
	DataTypeSMILES       = "smiles"
)

// Entity data type parameter keys.
const (
	ParamEntityTypes = "entity_types"
	ParamMatchMode   = "match_mode"
)

// Entity match modes: auto sniffs free text vs identifiers per column,
// the other two force one path.
const (
	MatchModeAuto     = "auto"
	MatchModeFreeText = "free_text"
	MatchModeXref     = "xref"
)

// InferenceOpKind is the declarative derivation applied when a column is
// absent from the source but derivable or extractable.
type InferenceOpKind string

const (
	InferCopy     InferenceOpKind = "copy"
	InferConcat   InferenceOpKind = "concat"
	InferFileStem InferenceOpKind = "file_stem"
	InferConstant InferenceOpKind = "constant"
	InferExtract  InferenceOpKind = "extract"
	InferSum      InferenceOpKind = "sum"
	InferDiff     InferenceOpKind = "diff"
	InferLn       InferenceOpKind = "ln"
	InferExp      InferenceOpKind = "exp"
	InferNegLog10 InferenceOpKind = "neg_log10"
	InferPow10Neg InferenceOpKind = "pow10_neg"
)

// InferenceSpec declares one way to fill a missing column. Derived specs
// name the upstream columns they need; extract specs carry the question
// put to the context extraction collaborator.
type InferenceSpec struct {
	Op       InferenceOpKind
	Requires []string
	Sep      string
	Value    string
	Query    string
}

func (s InferenceSpec) Validate() error {
	switch s.Op {
	case InferCopy:
		if len(s.Requires) != 1 {
			return errors.New("copy inference requires exactly one upstream column")
		}
	case InferConcat, InferSum:
		if len(s.Requires) < 2 {
			return fmt.Errorf("%s inference requires at least two upstream columns", s.Op)
		}
	case InferDiff:
		if len(s.Requires) != 2 {
			return errors.New("diff inference requires exactly two upstream columns")
		}
	case InferLn, InferExp, InferNegLog10, InferPow10Neg:
		if len(s.Requires) != 1 {
			return fmt.Errorf("%s inference requires exactly one upstream column", s.Op)
		}
	case InferFileStem:
		if len(s.Requires) != 0 {
			return errors.New("file_stem inference takes no upstream columns")
		}
	case InferConstant:
		if s.Value == "" {
			return errors.New("constant inference requires a value")
		}
	case InferExtract:
		if strings.TrimSpace(s.Query) == "" {
			return errors.New("extract inference requires a query")
		}
	default:
		return fmt.Errorf("unknown inference op %q", s.Op)
	}
	return nil
}

// Derived reports whether the spec fills the column from present data
// rather than from external context.
func (s InferenceSpec) Derived() bool {
	return s.Op != InferExtract
}

// ColumnDefinition is one canonical column of a schema.
type ColumnDefinition struct {
	Name        string
	DataType    string
	EntityTypes []EntityType
	MatchMode   string
	Required    bool
	Default     string
	HasDefault  bool
	Description string
	Aliases     []string
	Inferences  []InferenceSpec
}

// Schema groups column definitions under a unique name.
type Schema struct {
	Name        string
	Description string
	Columns     []ColumnDefinition
	BuiltIn     bool
	CreatedAt   time.Time
	CreatedBy   string
}

func (s Schema) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("schema name is required")
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for _, col := range s.Columns {
		name := strings.TrimSpace(col.Name)
		if name == "" {
			return errors.New("column name is required")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Column returns the definition for name, if present.
func (s Schema) Column(name string) (ColumnDefinition, bool) {
	for _, col := range s.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return ColumnDefinition{}, false
}
