package models

// EscalationDecision is the structured output of contextual analysis for one
// triggered segment. Produced once, consumed exactly once by the dispatcher.
type EscalationDecision struct {
	Narrative            string   `json:"narrative"`
	InstructionAlignment string   `json:"instruction_alignment"`
	ShouldAlert          bool     `json:"should_alert"`
	Severity             Severity `json:"severity,omitempty"`
	RecommendedActions   []string `json:"recommended_actions,omitempty"`
	Reasoning            string   `json:"reasoning"`
}

// EffectiveSeverity resolves an absent severity to medium, matching how the
// upstream alert store grades decisions that omit a level.
func (d EscalationDecision) EffectiveSeverity() Severity {
	if d.Severity == "" {
		return SeverityMedium
	}
	return d.Severity
}
