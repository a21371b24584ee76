package domain

import (
	"errors"
	"strings"
)

// EntityType tags a canonical ontology record with its semantic class.
// The set mirrors the biolink-derived classes the ontology ingestion job
// emits.
type EntityType string

const (
	EntityGene                EntityType = "Gene"
	EntityPhenotypicFeature   EntityType = "PhenotypicFeature"
	EntityDisease             EntityType = "Disease"
	EntityTrait               EntityType = "Trait"
	EntityPathway             EntityType = "Pathway"
	EntityCell                EntityType = "Cell"
	EntityAnatomicalEntity    EntityType = "AnatomicalEntity"
	EntityCellularComponent   EntityType = "CellularComponent"
	EntityMolecularEntity     EntityType = "MolecularEntity"
	EntityProtein             EntityType = "Protein"
	EntityChemicalEntity      EntityType = "ChemicalEntity"
	EntityDrug                EntityType = "Drug"
	EntitySmallMolecule       EntityType = "SmallMolecule"
	EntityOrganismTaxon       EntityType = "OrganismTaxon"
	EntityTranscript          EntityType = "Transcript"
	EntityPathologicalProcess EntityType = "PathologicalProcess"
	EntityBehavioralFeature   EntityType = "BehavioralFeature"
	EntityLifeStage           EntityType = "LifeStage"
	EntityNamedThing          EntityType = "NamedThing"
)

// EntityTypes lists every known entity type in stable order.
func EntityTypes() []EntityType {
	return []EntityType{
		EntityGene,
		EntityPhenotypicFeature,
		EntityDisease,
		EntityTrait,
		EntityPathway,
		EntityCell,
		EntityAnatomicalEntity,
		EntityCellularComponent,
		EntityMolecularEntity,
		EntityProtein,
		EntityChemicalEntity,
		EntityDrug,
		EntitySmallMolecule,
		EntityOrganismTaxon,
		EntityTranscript,
		EntityPathologicalProcess,
		EntityBehavioralFeature,
		EntityLifeStage,
		EntityNamedThing,
	}
}

// EntityTypeDescriptions maps type tags to the descriptions shown when a
// schema column is configured with an entity data type.
var EntityTypeDescriptions = map[EntityType]string{
	EntityGene:                "A region that includes all of the sequence elements necessary to encode a functional transcript.",
	EntityPhenotypicFeature:   "An observable characteristic of an individual resulting from the interaction of its genotype with its environment.",
	EntityDisease:             "A disorder of structure or function that produces specific signs, phenotypes or symptoms.",
	EntityTrait:               "A measurable or observable characteristic studied in association analyses.",
	EntityPathway:             "A series of chemical reactions that occur in a living organism.",
	EntityCell:                "The basic structural and functional unit of an organism.",
	EntityAnatomicalEntity:    "A part of the body.",
	EntityCellularComponent:   "A location in or around a cell.",
	EntityMolecularEntity:     "A chemical entity composed of individual or covalently bonded atoms.",
	EntityProtein:             "A gene product composed of a chain of amino acids produced by ribosome-mediated translation of mRNA.",
	EntityChemicalEntity:      "A physical entity that pertains to chemistry or biochemistry.",
	EntityDrug:                "A substance intended for use in the diagnosis, cure, mitigation, treatment, or prevention of disease.",
	EntitySmallMolecule:       "A molecular entity with an unambiguous small-molecule structure representation.",
	EntityOrganismTaxon:       "A classification of a set of organisms, including strains and subspecies.",
	EntityTranscript:          "An RNA synthesized on a DNA or RNA template by an RNA polymerase.",
	EntityPathologicalProcess: "A biologic function or process with an abnormal or deleterious effect.",
	EntityBehavioralFeature:   "A phenotypic feature which is behavioral in nature.",
	EntityLifeStage:           "A stage of development or growth of an organism.",
	EntityNamedThing:          "A databased entity or concept/class.",
}

// ParseEntityType validates a type tag received over the wire.
func ParseEntityType(value string) (EntityType, error) {
	candidate := EntityType(strings.TrimSpace(value))
	if _, ok := EntityTypeDescriptions[candidate]; !ok {
		return "", errors.New("unknown entity type " + value)
	}
	return candidate, nil
}

// Entity is a canonical ontology record. Immutable once ingested; the
// pipeline treats the entity index as read-only.
type Entity struct {
	ID       string
	Name     string
	IRI      string
	Type     EntityType
	Synonyms []string
	Xrefs    []string
}

func (e Entity) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return errors.New("entity id is required")
	}
	if strings.TrimSpace(e.Name) == "" {
		return errors.New("entity name is required")
	}
	if e.Type == "" {
		return errors.New("entity type is required")
	}
	return nil
}
