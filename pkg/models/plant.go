package models

// Placeholder values used when a section is missing from the model response
const (
	DefaultCommonName       = "Unknown Plant"
	DefaultDescription      = "No description available"
	DefaultAttribute        = "-"
	DefaultCareInstructions = "No care instructions found"
	SyntheticKeyFact        = "Identified with AI technology"
)

// PlantRecord is the fully-defaulted result of parsing a model response.
// Every field is always populated and KeyFacts is never empty.
type PlantRecord struct {
	CommonName        string   `json:"commonName"`
	ScientificName    string   `json:"scientificName"`
	Description       string   `json:"description"`
	WaterNeeds        string   `json:"waterNeeds"`
	LightRequirements string   `json:"lightRequirements"`
	GrowthRate        string   `json:"growthRate"`
	MatureSize        string   `json:"matureSize"`
	IdealClimate      string   `json:"idealClimate"`
	CareInstructions  string   `json:"careInstructions"`
	KeyFacts          []string `json:"keyFacts"`
}

// NewPlantRecord returns a record with every field set to its default
func NewPlantRecord() PlantRecord {
	return PlantRecord{
		CommonName:        DefaultCommonName,
		Description:       DefaultDescription,
		WaterNeeds:        DefaultAttribute,
		LightRequirements: DefaultAttribute,
		GrowthRate:        DefaultAttribute,
		MatureSize:        DefaultAttribute,
		IdealClimate:      DefaultAttribute,
		CareInstructions:  DefaultCareInstructions,
		KeyFacts:          []string{SyntheticKeyFact},
	}
}
