package models

type Spectrum string

const (
	SpectrumFarLeft     Spectrum = "far-left"
	SpectrumLeft        Spectrum = "left"
	SpectrumCenterLeft  Spectrum = "center-left"
	SpectrumCenter      Spectrum = "center"
	SpectrumCenterRight Spectrum = "center-right"
	SpectrumRight       Spectrum = "right"
	SpectrumFarRight    Spectrum = "far-right"
)

// Spectrums lists every category from left to right.
var Spectrums = []Spectrum{
	SpectrumFarLeft,
	SpectrumLeft,
	SpectrumCenterLeft,
	SpectrumCenter,
	SpectrumCenterRight,
	SpectrumRight,
	SpectrumFarRight,
}

// spectrumScale is the fixed political score for each category. It decreases
// monotonically from far-left to far-right.
var spectrumScale = map[Spectrum]float64{
	SpectrumFarLeft:     1.00,
	SpectrumLeft:        0.66,
	SpectrumCenterLeft:  0.33,
	SpectrumCenter:      0.00,
	SpectrumCenterRight: -0.33,
	SpectrumRight:       -0.66,
	SpectrumFarRight:    -1.00,
}

func (s Spectrum) IsValid() bool {
	_, ok := spectrumScale[s]
	return ok
}

// Score returns the political score for s, 0 for unknown values.
func (s Spectrum) Score() float64 {
	return spectrumScale[s]
}

func (s Spectrum) String() string {
	return string(s)
}

type SpectrumResult struct {
	Spectrum       Spectrum `json:"spectrum" dynamodbav:"spectrum"`
	Confidence     float64  `json:"confidence" dynamodbav:"confidence"`
	PoliticalScore float64  `json:"politicalScore" dynamodbav:"political_score"`
}

// NewSpectrumResult keeps PoliticalScore tied to the category scale.
func NewSpectrumResult(spectrum Spectrum, confidence float64) SpectrumResult {
	return SpectrumResult{
		Spectrum:       spectrum,
		Confidence:     confidence,
		PoliticalScore: spectrum.Score(),
	}
}
