package models

// ModelParameters are the generation settings sent with every request
type ModelParameters struct {
	Temperature     float32 `json:"temperature"`
	MaxOutputTokens int32   `json:"maxOutputTokens"`
}

// IdentificationRequest is built once per identification and never mutated
type IdentificationRequest struct {
	Image       ImageBuffer
	Instruction string
	Parameters  ModelParameters
}

// IdentifyPlantRequest is the payload for POST /api/identify-plant
type IdentifyPlantRequest struct {
	ImageData string `json:"imageData"`
	MIMEType  string `json:"mimeType,omitempty"`
}

// ErrorResponse is the JSON body returned by the server on failure
type ErrorResponse struct {
	Error string `json:"error"`
}

// IdentifyResponse is the payload for POST /api/identify
type IdentifyResponse struct {
	Plant PlantRecord `json:"plant"`
	Raw   string      `json:"raw"`
}
