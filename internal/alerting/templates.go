package alerting

import (
	"fmt"

	"github.com/osteele/liquid"

	"github.com/clearsight/adscope/internal/domain"
	"github.com/clearsight/adscope/internal/pkg/logger"
	"github.com/clearsight/adscope/internal/suspicion"
)

// Per-type liquid templates for alert titles and messages. Candidate.Data
// keys are exposed as template bindings alongside ad_id and score.
var alertTemplates = map[domain.AlertType]struct{ title, message string }{
	domain.AlertNewAd: {
		title:   "New ad tracked: {{ headline | default: ad_id }}",
		message: "A new creative for {{ advertiser | default: \"an advertiser\" }} entered tracking.",
	},
	domain.AlertHighSuspicion: {
		title:   "High suspicion score ({{ score }}) on ad {{ ad_id }}",
		message: "Suspicion score reached {{ score }} ({{ band }}). Review the latest snapshots.",
	},
	domain.AlertCloakingConfirmed: {
		title:   "Cloaking confirmed on ad {{ ad_id }}",
		message: "Landing content diverges across {{ conditions | join: \", \" }}. Black URL: {{ black_url | default: \"unknown\" }}.",
	},
	domain.AlertAPIRecovery: {
		title:   "Ad library API recovered",
		message: "Import from the ad library resumed after {{ outage_minutes | default: \"an unknown number of\" }} minutes of failures.",
	},
}

// Renderer renders alert content through liquid with a plain fallback when
// a template or binding fails; an alert is never dropped over formatting.
type Renderer struct {
	engine *liquid.Engine
}

func NewRenderer() *Renderer {
	return &Renderer{engine: liquid.NewEngine()}
}

// Render produces the title and message for a candidate.
func (r *Renderer) Render(c Candidate) (title, message string) {
	tmpl, ok := alertTemplates[c.Type]
	if !ok {
		return fallbackTitle(c), ""
	}

	bindings := map[string]any{
		"ad_id": c.AdID,
		"score": c.SuspicionScore,
		"band":  suspicion.Band(c.SuspicionScore),
	}
	for k, v := range c.Data {
		bindings[k] = v
	}

	title, err := r.engine.ParseAndRenderString(tmpl.title, bindings)
	if err != nil {
		logger.Warn("alert title template failed", "type", string(c.Type), "error", err.Error())
		title = fallbackTitle(c)
	}
	message, err = r.engine.ParseAndRenderString(tmpl.message, bindings)
	if err != nil {
		logger.Warn("alert message template failed", "type", string(c.Type), "error", err.Error())
		message = ""
	}
	return title, message
}

func fallbackTitle(c Candidate) string {
	return fmt.Sprintf("%s: ad %s", c.Type, c.AdID)
}
