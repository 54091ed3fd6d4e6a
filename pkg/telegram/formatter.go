package telegram

import (
	"fmt"
	"time"

	"golang-portfolio-predictor/internal/predictor/dto"
)

// FormatEvaluationSummary renders an evaluation pass result as a Markdown
// message.
func FormatEvaluationSummary(asOf time.Time, summary *dto.EvaluationSummary) string {
	return fmt.Sprintf(
		"*Prediction Evaluation* (%s)\n"+
			"✅ Graded: %d\n"+
			"⏳ Deferred (no close yet): %d\n"+
			"❌ Failed: %d",
		asOf.Format("2006-01-02"),
		summary.Graded,
		summary.Deferred,
		summary.Failed,
	)
}
