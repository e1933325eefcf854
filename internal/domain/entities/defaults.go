package entities

import (
	"encoding/json"
	"time"
)

// NewDefaultDocument returns the dataset used on first start or when the
// stored document cannot be read.
func NewDefaultDocument(now time.Time) *Document {
	created := FormatTimestamp(now.Truncate(time.Microsecond))
	doc := &Document{
		Settings: Attributes{"theme": "light"},
		ProcessDesign: ProcessDesign{
			Materials:     sampleMaterials(created),
			MSDSDocuments: sampleMSDS(created),
		},
	}
	doc.Normalize()
	return doc
}

func sampleMaterials(created string) []Attributes {
	return []Attributes{
		{
			"material_id":      "MAT_WATER",
			"name":             "WATER",
			"chinese_name":     "水",
			"cas_number":       "7732-18-5",
			"chemical_formula": "H2O",
			"molecular_weight": json.Number("18.015"),
			"density":          json.Number("998.2"),
			"boiling_point":    json.Number("100"),
			"melting_point":    json.Number("0"),
			"flash_point":      "N/A",
			"phase":            "liquid",
			"hazard_class":     "non-hazardous",
			"created_at":       created,
		},
		{
			"material_id":      "MAT_ETHANOL",
			"name":             "ETHANOL",
			"chinese_name":     "乙醇",
			"cas_number":       "64-17-5",
			"chemical_formula": "C2H5OH",
			"molecular_weight": json.Number("46.07"),
			"density":          json.Number("789"),
			"boiling_point":    json.Number("78.37"),
			"melting_point":    json.Number("-114.1"),
			"flash_point":      json.Number("13"),
			"phase":            "liquid",
			"hazard_class":     "flammable liquid",
			"created_at":       created,
		},
		{
			"material_id":      "MAT_METHANE",
			"name":             "METHANE",
			"chinese_name":     "甲烷",
			"cas_number":       "74-82-8",
			"chemical_formula": "CH4",
			"molecular_weight": json.Number("16.04"),
			"density":          json.Number("0.657"),
			"boiling_point":    json.Number("-161.5"),
			"melting_point":    json.Number("-182.5"),
			"flash_point":      json.Number("-188"),
			"phase":            "gas",
			"hazard_class":     "flammable gas",
			"created_at":       created,
		},
	}
}

func sampleMSDS(created string) []Attributes {
	return []Attributes{
		{
			"msds_id":        "MSDS_ETHANOL",
			"material_name":  "ETHANOL",
			"cas_number":     "64-17-5",
			"version":        "1.0",
			"supplier":       "Generic",
			"hazards":        []any{"Highly flammable liquid and vapour", "Causes serious eye irritation"},
			"first_aid":      "Rinse cautiously with water for several minutes.",
			"storage":        "Keep container tightly closed in a cool, well-ventilated place.",
			"created_at":     created,
			"effective_date": created[:10],
		},
		{
			"msds_id":        "MSDS_METHANE",
			"material_name":  "METHANE",
			"cas_number":     "74-82-8",
			"version":        "1.0",
			"supplier":       "Generic",
			"hazards":        []any{"Extremely flammable gas", "Contains gas under pressure; may explode if heated"},
			"first_aid":      "Remove person to fresh air and keep comfortable for breathing.",
			"storage":        "Protect from sunlight. Store in a well-ventilated place.",
			"created_at":     created,
			"effective_date": created[:10],
		},
	}
}
