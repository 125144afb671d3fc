package classify

import "github.com/hyperjump/furui/internal/models"

// Reduce merges ordered chunk verdicts into a single document verdict.
//
// Presence is an OR across chunks: once any chunk reports a recipe the
// document does. The material type comes from the first chunk, in order,
// that reports presence together with a concrete material; later chunks
// never override it. Parse-failure verdicts contribute nothing in either
// direction. The document verdict carries the parse-failure marker only
// when every chunk failed to parse, meaning there was no signal at all.
func Reduce(verdicts []models.Verdict) models.Verdict {
	final := models.Verdict{ContainsRecipe: false, MaterialType: models.NoMaterial}

	failed := 0
	materialSet := false
	for _, v := range verdicts {
		if v.ParseError {
			failed++
			continue
		}
		if !v.ContainsRecipe {
			continue
		}
		final.ContainsRecipe = true
		if !materialSet && v.HasMaterial() {
			final.MaterialType = v.MaterialType
			materialSet = true
		}
	}

	if len(verdicts) > 0 && failed == len(verdicts) {
		final.ParseError = true
	}
	return final
}
