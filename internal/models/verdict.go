// Package models defines core data structures for verdicts, runs, and reports.
package models

// NoMaterial is the sentinel material type for text without a recipe.
const NoMaterial = "N/A"

// Verdict is the structured result of analyzing one chunk or one document.
// ContainsRecipe and MaterialType are the stable fields downstream consumers
// key on. ParseError marks a result whose model output could not be
// interpreted as structured data; such a verdict carries no signal when
// chunk verdicts are merged.
type Verdict struct {
	ContainsRecipe bool   `json:"contains_recipe"`
	MaterialType   string `json:"material_type"`
	ParseError     bool   `json:"parse_error,omitempty"`
}

// NeutralVerdict returns the verdict recorded for a chunk whose analysis
// produced no usable signal (malformed output or a failed call).
func NeutralVerdict() Verdict {
	return Verdict{ContainsRecipe: false, MaterialType: NoMaterial, ParseError: true}
}

// HasMaterial reports whether the verdict names a concrete material type.
func (v Verdict) HasMaterial() bool {
	return v.MaterialType != "" && v.MaterialType != NoMaterial
}
