package analysis

import (
	"encoding/json"
	"strings"

	"decentra/internal/models"
)

type response struct {
	Results []Result `json:"results"`
}

// Result is the analyzer output for a single image.
type Result struct {
	Filename       string          `json:"filename"`
	Classification *Classification `json:"classification"`
	Detection      *Detection      `json:"detection"`
}

type Classification struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type Detection struct {
	Count     int               `json:"count"`
	Instances []json.RawMessage `json:"instances"`
}

type instanceLabel struct {
	Label string `json:"label"`
}

// MapResult folds the classifier and detector output into damage markers.
// Instances are kept verbatim so masks survive whatever format the
// detector emits.
func MapResult(r Result) models.Findings {
	f := models.Findings{DamageClasses: []string{}}

	if r.Classification != nil && strings.EqualFold(r.Classification.Label, "dirty") {
		f.Dust = "dust"
	}

	kept := make([]json.RawMessage, 0)
	if r.Detection != nil {
		for _, raw := range r.Detection.Instances {
			var inst instanceLabel
			if err := json.Unmarshal(raw, &inst); err != nil || inst.Label == "" {
				continue
			}
			f.DamageClasses = append(f.DamageClasses, inst.Label)
			kept = append(kept, raw)

			switch strings.ToLower(inst.Label) {
			case "rust", "corrosion":
				f.Rust = "rust"
			case "dent":
				f.Dent = "dent"
			case "scratch", "paint chip":
				f.Scratch = "scratch"
			}
		}
	}

	masks, _ := json.Marshal(struct {
		Instances []json.RawMessage `json:"instances"`
	}{Instances: kept})
	f.Masks = masks
	return f
}
