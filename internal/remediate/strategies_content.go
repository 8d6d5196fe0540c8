package remediate

import (
	"context"
	"errors"
	"fmt"

	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/htmldoc"
	"github.com/JaxylViernes/Wordpress-SEO-Automated-sub001/internal/wpclient"
)

const (
	// thinContentThreshold is the word count below which content is thin.
	thinContentThreshold = 300

	// expansionFloor is the hard minimum for an accepted expansion. An
	// output under the floor after all attempts is a terminal failure
	// for the document; there is no partial acceptance.
	expansionFloor = 400

	// expansionTolerance is how far under the attempt target an output
	// may land and still be accepted immediately.
	expansionTolerance = 50
)

// expansionTargets are the escalating word-count targets for the three
// generation attempts.
var expansionTargets = []int{600, 700, 800}

// expansionAcceptable is the termination predicate for the retry loop: an
// attempt's output is accepted when it lands within tolerance of its
// target.
func expansionAcceptable(words, target int) bool {
	return words >= target-expansionTolerance
}

// transformThinContent expands documents under the thin-content threshold
// using the configured generation backend, retrying with escalating targets
// and rejecting outputs under the floor.
func transformThinContent(ctx context.Context, rc *RunContext, doc *wpclient.Document, issue Issue) (*transformResult, error) {
	words := htmldoc.WordCount(doc.Content.Text())
	if words >= thinContentThreshold {
		return &transformResult{
			Description: fmt.Sprintf("content already has %d words, above the %d-word threshold", words, thinContentThreshold),
		}, nil
	}

	if rc.Expander == nil {
		return nil, errors.New("thin content requires a generation backend and none is configured")
	}

	var best string
	bestWords := 0
	for attempt, target := range expansionTargets {
		out, err := rc.Expander.Expand(ctx, doc, target)
		if err != nil {
			rc.Logf("thin_content: expansion attempt %d for content %d failed: %v", attempt+1, doc.ID, err)
			continue
		}

		got := htmldoc.WordCount(out)
		if got > bestWords {
			best = out
			bestWords = got
		}
		if expansionAcceptable(got, target) {
			break
		}
		rc.Logf("thin_content: attempt %d for content %d produced %d words, target %d",
			attempt+1, doc.ID, got, target)
	}

	if bestWords < expansionFloor {
		return nil, fmt.Errorf("expansion produced only %d words after %d attempts, need at least %d",
			bestWords, len(expansionTargets), expansionFloor)
	}

	return &transformResult{
		Updated:     true,
		Payload:     wpclient.UpdatePayload{Content: wpclient.StringPtr(best)},
		Description: fmt.Sprintf("expanded content from %d to %d words", words, bestWords),
	}, nil
}
