package identify

import "github.com/shehryarbajwa/plant-identifier/pkg/models"

// Instruction asks the model for ten labeled sections in a fixed order
const Instruction = "Please identify this plant with high precision. Provide a detailed response in this specific format:\n\n" +
	"1. Common Name: [plant name]\n" +
	"2. Scientific Name: [scientific name]\n" +
	"3. Description: [detailed description]\n" +
	"4. Water Needs: [low/medium/high]\n" +
	"5. Light Requirements: [full sun/partial shade/full shade]\n" +
	"6. Growth Rate: [slow/medium/fast]\n" +
	"7. Mature Size: [height and width]\n" +
	"8. Ideal Climate: [tropical/temperate/etc]\n" +
	"9. Key Facts: [3-5 short bullet points about unique features]\n" +
	"10. Care Instructions: [detailed care instructions]\n\n" +
	"Ensure each section is clearly labeled and informative."

// DefaultParameters favour accurate, bounded answers
var DefaultParameters = models.ModelParameters{
	Temperature:     0.4,
	MaxOutputTokens: 1000,
}

// NewRequest builds the request for a single image
func NewRequest(image models.ImageBuffer) models.IdentificationRequest {
	return models.IdentificationRequest{
		Image:       image,
		Instruction: Instruction,
		Parameters:  DefaultParameters,
	}
}
