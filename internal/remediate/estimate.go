package remediate

// estimateCap bounds the reported dry-run improvement. The auditor score
// saturates; promising more than this is never honest.
const estimateCap = 40.0

// fixTypeWeights are the per-type score weights used for dry-run
// estimation. Each weight is multiplied by the issue's impact multiplier.
var fixTypeWeights = map[FixType]float64{
	FixThinContent:      12,
	FixTitleTag:         10,
	FixMetaDescription:  8,
	FixHeadingStructure: 6,
	FixStructuredData:   5,
	FixInternalLinks:    5,
	FixCanonicalURL:     4,
	FixImageAltText:     4,
	FixSocialTags:       3,
	FixImageDimensions:  3,
	FixExternalLinks:    2,
	FixTableOfContents:  2,
	FixFreshness:        2,
}

// defaultFixWeight applies to fix types without an explicit weight.
const defaultFixWeight = 2.0

// EstimateImprovement sums weight[type] x impactMultiplier over the
// outcomes, capped at the estimate ceiling.
func EstimateImprovement(outcomes []FixOutcome) float64 {
	total := 0.0
	for _, o := range outcomes {
		w, ok := fixTypeWeights[o.Type]
		if !ok {
			w = defaultFixWeight
		}
		total += w * o.Impact.Multiplier()
	}
	if total > estimateCap {
		return estimateCap
	}
	return total
}
