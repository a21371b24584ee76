// Package schemas holds the canonical column data type catalogue, the
// built-in target schemas, the yaml schema spec codec and the registry
// that serves user-defined schemas alongside the built-ins.
package schemas

import (
	"fmt"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
)

func entityTypeParam() domain.DataTypeParam {
	types := domain.EntityTypes()
	options := make([]domain.DataTypeParamOption, 0, len(types))
	for _, etype := range types {
		options = append(options, domain.DataTypeParamOption{
			Name:        string(etype),
			Value:       string(etype),
			Description: domain.EntityTypeDescriptions[etype],
		})
	}
	return domain.DataTypeParam{
		Key:           domain.ParamEntityTypes,
		Name:          "Entity types",
		Options:       options,
		AllowMultiple: true,
	}
}

func matchModeParam() domain.DataTypeParam {
	return domain.DataTypeParam{
		Key:  domain.ParamMatchMode,
		Name: "Match mode",
		Options: []domain.DataTypeParamOption{
			{
				Name:        "Auto",
				Value:       domain.MatchModeAuto,
				Description: "Inspect the column values and choose between free-text and identifier matching. Recommended for most use cases.",
			},
			{
				Name:        "Free text",
				Value:       domain.MatchModeFreeText,
				Description: "Always resolve values as free-text mentions against entity names and synonyms.",
			},
			{
				Name:        "Identifier",
				Value:       domain.MatchModeXref,
				Description: "Always resolve values as CURIE identifiers against entity cross-references.",
			},
		},
		Default: domain.MatchModeAuto,
	}
}

// DataTypes returns the fixed column data type catalogue in stable order.
func DataTypes() []domain.DataType {
	return []domain.DataType{
		{Key: domain.DataTypeString, Name: "string", Description: "A string"},
		{Key: domain.DataTypeInt64, Name: "int64", Description: "A 64-bit signed integer"},
		{Key: domain.DataTypeInt32, Name: "int32", Description: "A 32-bit signed integer"},
		{Key: domain.DataTypeInt16, Name: "int16", Description: "A 16-bit signed integer"},
		{Key: domain.DataTypeInt8, Name: "int8", Description: "An 8-bit signed integer"},
		{Key: domain.DataTypeUint64, Name: "uint64", Description: "A 64-bit unsigned integer"},
		{Key: domain.DataTypeUint32, Name: "uint32", Description: "A 32-bit unsigned integer"},
		{Key: domain.DataTypeUint16, Name: "uint16", Description: "A 16-bit unsigned integer"},
		{Key: domain.DataTypeUint8, Name: "uint8", Description: "An 8-bit unsigned integer"},
		{Key: domain.DataTypeFloat64, Name: "float64", Description: "A 64-bit floating point number"},
		{Key: domain.DataTypeFloat32, Name: "float32", Description: "A 32-bit floating point number"},
		{Key: domain.DataTypeDecimal, Name: "Decimal", Description: "A decimal number"},
		{Key: domain.DataTypeDate, Name: "Date", Description: "A date"},
		{Key: domain.DataTypeDateTime, Name: "Date-time", Description: "A datetime"},
		{Key: domain.DataTypeBool, Name: "boolean", Description: "A boolean value"},
		{
			Key:         domain.DataTypeEntity,
			Name:        "Entity",
			Description: "An ontology entity",
			Params:      []domain.DataTypeParam{entityTypeParam(), matchModeParam()},
		},
		{Key: domain.DataTypeAminoAcidSeq, Name: "Amino acid sequence", Description: "An amino acid sequence"},
		{Key: domain.DataTypeNucleotide, Name: "Nucleotide sequence", Description: "A nucleotide sequence"},
		{Key: domain.DataTypeSMILES, Name: "SMILES", Description: "A SMILES string"},
	}
}

// GetDataType looks a catalogue entry up by key.
func GetDataType(key string) (domain.DataType, error) {
	for _, dt := range DataTypes() {
		if dt.Key == key {
			return dt, nil
		}
	}
	return domain.DataType{}, fmt.Errorf("%w: data type %q", domain.ErrNotFound, key)
}

// KnownDataType reports whether key names a catalogue entry.
func KnownDataType(key string) bool {
	_, err := GetDataType(key)
	return err == nil
}
