package openai

import (
	"fmt"
	"strings"
)

const (
	systemPrompt = "You are an electrical plan reviewer for residential solar permits. " +
		"Check the plan against the National Electrical Code and local amendments. Respond with JSON only. No markdown."
	systemPromptFixJSON = "You are a JSON repair tool. Return only valid JSON that matches the schema exactly."

	schemaPrompt = `Return an object with exactly these keys:
{
  "details": {
    "circuitCount": number|null,
    "panelAmperage": number|null,
    "serviceEntranceLocation": string|null,
    "solarInterconnectionPoint": string|null,
    "proposedSolarSystemSize": number|null
  },
  "violations": [{"codeSection": string, "description": string, "severity": "low"|"medium"|"high"|"critical"}],
  "recommendations": [string],
  "complianceScore": integer 0-100,
  "requiresHumanReview": boolean
}
proposedSolarSystemSize is in kW. Use null for anything the plan does not show.`
)

func userPrompt(city string) string {
	jurisdiction := strings.TrimSpace(city)
	if jurisdiction == "" {
		jurisdiction = "unspecified (apply base NEC only)"
	}
	return fmt.Sprintf("Review this electrical plan for a solar installation.\nJurisdiction: %s\n\n%s", jurisdiction, schemaPrompt)
}

func textPlanPrompt(city, planText string) string {
	return fmt.Sprintf("%s\n\nPlan text:\n%s", userPrompt(city), planText)
}

func fixUserPrompt(raw string) string {
	return fmt.Sprintf("Fix this JSON to match the schema exactly. Output JSON only:\n%s\n\n%s", raw, schemaPrompt)
}
