package assistant

import (
	"fmt"
	"strings"
)

type Intent string

const (
	IntentPrescription Intent = "prescription"
	IntentPrevisit     Intent = "previsit"
	IntentNextSteps    Intent = "next_steps"
)

const closingNote = "This guidance is AI-generated and should be reviewed with your care team before making medical decisions."

var headers = map[Intent]string{
	IntentPrescription: "Medication questions and safety checks",
	IntentPrevisit:     "Symptom snapshot for your upcoming visit",
	IntentNextSteps:    "Actionable follow-up plan",
}

var instructions = map[Intent]string{
	IntentPrescription: `You are a helpful medical assistant. Based on the patient's context below, provide clear guidance about their prescription medications. Include:
- Purpose of each medication
- Proper timing and dosage reminders
- Common side effects to watch for
- Drug interaction warnings if applicable
Keep the response concise and patient-friendly.`,
	IntentPrevisit: `You are a helpful medical assistant preparing a patient for their upcoming consultation. Based on the context below, create a structured symptom summary that includes:
- Main concerns and symptoms
- Duration and severity
- Relevant medical history mentioned
- Questions the patient should ask their doctor
Keep it organized and easy for both patient and doctor to review.`,
	IntentNextSteps: `You are a helpful medical assistant. Based on the consultation context below, create a clear follow-up action plan that includes:
- Key takeaways from the visit
- Medications or treatments to follow
- Lifestyle recommendations if any
- When to schedule follow-up appointments
- Warning signs that require immediate attention
Keep the response actionable and easy to follow.`,
}

func ParseIntent(v string) (Intent, error) {
	i := Intent(strings.TrimSpace(strings.ToLower(v)))
	if _, ok := headers[i]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidIntent, v)
	}
	return i, nil
}

// BuildPrompt wraps already-sanitized context in the intent's instructions.
func BuildPrompt(intent Intent, sanitized string) string {
	return instructions[intent] + "\n\nPatient Context (sanitized for privacy):\n" + sanitized + "\n\nPlease provide your guidance:"
}

// FallbackSummary is returned whenever the model is unconfigured or fails.
func FallbackSummary(intent Intent, sanitized string) string {
	return headers[intent] + "\n\n" + sanitized + "\n\n" + closingNote
}
