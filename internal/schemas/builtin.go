package schemas

import "github.com/harmonia-labs/harmonia-go/internal/domain"

// Builtins returns the fixed target schemas shipped with the service,
// in identification priority order. The permissive Other schema comes
// last so header matching only falls through to it when nothing else
// scores.
func Builtins() []domain.Schema {
	return []domain.Schema{gwasSchema(), rnaSeqSchema(), otherSchema()}
}

func datasetIDColumn() domain.ColumnDefinition {
	return domain.ColumnDefinition{
		Name:     "dataset_id",
		DataType: domain.DataTypeString,
		Required: true,
		Inferences: []domain.InferenceSpec{
			{Op: domain.InferFileStem},
		},
	}
}

func gwasSchema() domain.Schema {
	return domain.Schema{
		Name:        "GWAS",
		Description: "Genome-wide association study summary statistics.",
		BuiltIn:     true,
		Columns: []domain.ColumnDefinition{
			datasetIDColumn(),
			{
				Name:        "trait_id",
				DataType:    domain.DataTypeEntity,
				EntityTypes: []domain.EntityType{domain.EntityDisease},
				MatchMode:   domain.MatchModeAuto,
				Required:    true,
				Inferences: []domain.InferenceSpec{
					{Op: domain.InferExtract, Query: "What is the name of the disease that this GWAS study is investigating?"},
				},
			},
			{
				Name:     "num_samples",
				DataType: domain.DataTypeInt64,
				Required: true,
				Aliases: []string{
					"N", "NMISS", "Nsample", "OBS_CT", "SS", "TotalSampleSize",
					"n", "num_samples", "sample_size",
				},
				Inferences: []domain.InferenceSpec{
					{Op: domain.InferSum, Requires: []string{"num_cases", "num_controls"}},
				},
			},
			{
				Name:     "num_cases",
				DataType: domain.DataTypeInt64,
				Required: true,
				Aliases:  []string{"N_CASE", "ncase", "TotalCases"},
				Inferences: []domain.InferenceSpec{
					{Op: domain.InferDiff, Requires: []string{"num_samples", "num_controls"}},
					{Op: domain.InferExtract, Query: "What is the number of cases in this GWAS study?"},
				},
			},
			{
				Name:     "num_controls",
				DataType: domain.DataTypeInt64,
				Required: true,
				Aliases:  []string{"N_CONTROL", "ncontrol", "TotalControls"},
				Inferences: []domain.InferenceSpec{
					{Op: domain.InferDiff, Requires: []string{"num_samples", "num_cases"}},
					{Op: domain.InferExtract, Query: "What is the number of controls in this GWAS study?"},
				},
			},
			{
				Name:     "genome_build",
				DataType: domain.DataTypeString,
				Aliases:  []string{"GenomeBuild"},
				Inferences: []domain.InferenceSpec{
					{Op: domain.InferExtract, Query: "What is the genome build of the GWAS study? Choose one of: GRCh37, GRCh38"},
				},
			},
			{
				Name:     "variant_id",
				DataType: domain.DataTypeString,
				Required: true,
				Inferences: []domain.InferenceSpec{
					{
						Op:       domain.InferConcat,
						Requires: []string{"chromosome", "position", "effect_allele", "non_effect_allele"},
						Sep:      ":",
					},
				},
			},
			{
				Name:     "chromosome",
				DataType: domain.DataTypeString,
				Required: true,
				Aliases: []string{
					"#CHROM", "0", "CHR", "CHROM", "CHROMOSOME", "Chr", "Chrom",
					"Chromosome", "chr", "chr_name", "chrom", "chromosome", "hm_chr",
				},
			},
			{
				Name:     "position",
				DataType: domain.DataTypeInt64,
				Required: true,
				Aliases: []string{
					"3", "BP", "GENPOS", "POS", "Pos", "Position",
					"base_pair_location", "bp", "bpos", "chr_position", "hm_pos", "pos",
				},
			},
			{
				Name:     "non_effect_allele",
				DataType: domain.DataTypeString,
				Required: true,
				Aliases: []string{
					"4", "A0", "A2", "ALLELE0", "ALLELE2", "ALLELE_0", "ALLELE_2",
					"Allele0", "Allele1", "Allele_0", "Allele_2", "NEA",
					"NON_EFFECT_ALLELE", "Ref", "a0", "a2", "allele0", "allele2",
					"allele_0", "allele_2", "hm_inferOtherAllele", "hm_other_allele",
					"nea", "non_effect_allele", "other_allele", "ref", "reference",
					"reference_allele", "REF",
				},
			},
			{
				Name:     "effect_allele",
				DataType: domain.DataTypeString,
				Required: true,
				Aliases: []string{
					"5", "A1", "ALLELE1", "ALLELE_1", "Allele2", "Allele_1", "Alt",
					"EA", "a1", "allele1", "allele_1", "alt", "alternative",
					"alternative_allele", "ea", "effect_allele", "hm_effect_allele",
					"ALT",
				},
			},
			{
				Name:     "effect_size",
				DataType: domain.DataTypeFloat64,
				Required: true,
				Aliases: []string{
					"B", "BETA", "Beta", "ES", "Effect", "b", "beta",
					"effect_weight", "hm_beta", "EFFECT",
				},
				Inferences: []domain.InferenceSpec{
					{Op: domain.InferLn, Requires: []string{"odds_ratio"}},
				},
			},
			{
				Name:     "odds_ratio",
				DataType: domain.DataTypeFloat64,
				Required: true,
				Aliases:  []string{"OR", "OddsRatio"},
				Inferences: []domain.InferenceSpec{
					{Op: domain.InferExp, Requires: []string{"effect_size"}},
				},
			},
			{
				Name:     "standard_error",
				DataType: domain.DataTypeFloat64,
				Required: true,
				Aliases: []string{
					"LOG(OR)_SE", "SE", "StdErr", "betase", "se", "sebeta",
					"standard_error",
				},
			},
			{
				Name:     "p_value",
				DataType: domain.DataTypeFloat64,
				Required: true,
				Aliases: []string{
					"P", "P-value", "P-value_association", "P.value", "PVAL",
					"P_BOLT_LMM", "Pval", "p", "p-value", "p.value", "p_value", "pval",
				},
				Inferences: []domain.InferenceSpec{
					{Op: domain.InferPow10Neg, Requires: []string{"negative_log10_p_value"}},
				},
			},
			{
				Name:     "negative_log10_p_value",
				DataType: domain.DataTypeFloat64,
				Required: true,
				Aliases:  []string{"LOG10P", "LOG10_P", "LP", "MLOG10P", "neg_log_10_p_value"},
				Inferences: []domain.InferenceSpec{
					{Op: domain.InferNegLog10, Requires: []string{"p_value"}},
				},
			},
			{
				Name:     "effect_allele_frequency",
				DataType: domain.DataTypeFloat64,
				Aliases: []string{
					"A1FREQ", "A1_FREQ", "AF", "AF1", "AF_Allele2", "EAF", "FREQ",
					"FRQ", "Freq", "Freq1", "Frequency", "Frq", "af",
					"allelefrequency_effect", "eaf", "effect_allele_frequency",
					"freq", "frq", "hm_effect_allele_frequency",
				},
			},
		},
	}
}

func rnaSeqSchema() domain.Schema {
	return domain.Schema{
		Name:        "RNA-seq",
		Description: "Sample-level RNA-seq expression data.",
		BuiltIn:     true,
		Columns: []domain.ColumnDefinition{
			datasetIDColumn(),
			{Name: "subject_id", DataType: domain.DataTypeString},
			{Name: "sample_id", DataType: domain.DataTypeString},
			{Name: "value", DataType: domain.DataTypeFloat64},
			{
				Name:     "value_type",
				DataType: domain.DataTypeString,
				Required: true,
				Inferences: []domain.InferenceSpec{
					{Op: domain.InferExtract, Query: "What is the measure used to quantify the RNA-seq data? E.g. RPKM, FPKM, TPM, etc."},
				},
			},
			{
				Name:        "disease_state",
				DataType:    domain.DataTypeEntity,
				EntityTypes: []domain.EntityType{domain.EntityDisease},
				MatchMode:   domain.MatchModeAuto,
				Inferences: []domain.InferenceSpec{
					{Op: domain.InferExtract, Query: "What is the disease state of the RNA-seq sample?"},
				},
			},
			{
				Name:        "tissue",
				DataType:    domain.DataTypeEntity,
				EntityTypes: []domain.EntityType{domain.EntityAnatomicalEntity},
				MatchMode:   domain.MatchModeAuto,
				Inferences: []domain.InferenceSpec{
					{Op: domain.InferExtract, Query: "What tissue are the RNA-seq samples from?"},
				},
			},
			{
				Name:        "cell_type",
				DataType:    domain.DataTypeEntity,
				EntityTypes: []domain.EntityType{domain.EntityCell},
				MatchMode:   domain.MatchModeAuto,
				Inferences: []domain.InferenceSpec{
					{Op: domain.InferExtract, Query: "What cell type are the RNA-seq samples from?"},
				},
			},
		},
	}
}

// otherSchema is the pass-through fallback: no canonical columns, so
// alignment keeps the source shape and only snake-cases the headers.
func otherSchema() domain.Schema {
	return domain.Schema{
		Name:        "Other",
		Description: "Anything that does not fit one of the structured schemas. Source columns pass through unaligned.",
		BuiltIn:     true,
	}
}
