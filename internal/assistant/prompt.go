package assistant

import (
	"fmt"
	"strings"

	"github.com/ashureev/onboard-chat/internal/domain"
)

const baseRules = `You are a friendly, professional insurance onboarding assistant. Your role is to collect information from users in a conversational way. Be concise but warm.

IMPORTANT RULES:
1. Stay focused on collecting the required information
2. If the user seems frustrated, upset, or asks to speak with a human, respond with empathy and include the phrase ` + FrustrationMarker + ` at the start of your response
3. Validate inputs naturally (e.g., if an email looks invalid, politely ask them to check it)
4. Keep responses brief - one or two sentences when asking for information
5. Don't repeat information the user has already provided`

var stateInstructions = map[domain.State]string{
	domain.StateZipCode:           "Ask for their ZIP code. Validate it's a 5-digit number.",
	domain.StateFullName:          "Ask for their full name.",
	domain.StateEmail:             "Ask for their email address.",
	domain.StateVehicleChoice:     "Ask if they want to provide a VIN number OR enter Year, Make, and Body Type manually.",
	domain.StateVehicleVIN:        "Ask for their vehicle's VIN (17 characters).",
	domain.StateVehicleYear:       "Ask for the vehicle's year.",
	domain.StateVehicleMake:       "Ask for the vehicle's make (e.g., Toyota, Ford, Honda).",
	domain.StateVehicleBody:       "Ask for the vehicle's body type (e.g., Sedan, SUV, Truck, Coupe).",
	domain.StateVehicleUse:        "Ask how they use this vehicle. Options: Commuting, Commercial, Farming, or Business.",
	domain.StateBlindSpotWarning:  "Ask if the vehicle has blind spot warning equipment (Yes/No).",
	domain.StateCommuteDays:       "Ask how many days per week they use this vehicle for commuting.",
	domain.StateCommuteMiles:      "Ask about one-way miles to work/school.",
	domain.StateAnnualMileage:     "Ask for estimated annual mileage.",
	domain.StateAddAnotherVehicle: "Ask if they want to add another vehicle to their policy.",
	domain.StateLicenseType:       "Ask about their US license type. Options: Foreign, Personal, or Commercial.",
	domain.StateLicenseStatus:     "Ask about their license status: Valid or Suspended.",
	domain.StateComplete:          "Thank them and let them know their information has been collected successfully.",
}

// Instruction returns the single instruction for state.
func Instruction(state domain.State) string {
	if s, ok := stateInstructions[state]; ok {
		return s
	}
	return "Continue the conversation naturally."
}

// SystemPrompt assembles the global rules, the state instruction, the
// non-empty collected facts and the per-turn extra context.
func SystemPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(baseRules)
	b.WriteString("\n\nCurrent task: ")
	b.WriteString(Instruction(req.State))

	wroteHeader := false
	for _, f := range req.Collected {
		if strings.TrimSpace(f.Value) == "" {
			continue
		}
		if !wroteHeader {
			b.WriteString("\n\nCollected information so far:\n")
			wroteHeader = true
		}
		fmt.Fprintf(&b, "- %s: %s\n", f.Label, f.Value)
	}

	if req.Frustrated {
		b.WriteString("\n\nThe user appears frustrated. Acknowledge it with empathy before continuing.")
	}
	if req.Extra != "" {
		b.WriteString("\n\nAdditional context: ")
		b.WriteString(req.Extra)
	}
	return b.String()
}

// CollectedFacts renders the non-empty fields of s as labeled facts.
func CollectedFacts(s *domain.Session) []Fact {
	var facts []Fact
	add := func(label, value string) {
		if value != "" {
			facts = append(facts, Fact{Label: label, Value: value})
		}
	}
	add("ZIP code", s.ZipCode)
	add("Full name", s.FullName)
	add("Email", s.Email)
	for i := range s.Vehicles {
		add(fmt.Sprintf("Vehicle %d", i+1), DescribeVehicle(&s.Vehicles[i]))
	}
	if s.Draft != nil {
		add("Vehicle in progress", DescribeVehicle(s.Draft))
	}
	add("License type", s.LicenseType)
	add("License status", s.LicenseStatus)
	return facts
}

// DescribeVehicle renders the populated attributes of v on one line.
func DescribeVehicle(v *domain.Vehicle) string {
	var parts []string
	var ident []string
	if v.Year != 0 {
		ident = append(ident, fmt.Sprint(v.Year))
	}
	if v.Make != "" {
		ident = append(ident, v.Make)
	}
	if v.Model != "" {
		ident = append(ident, v.Model)
	}
	if v.BodyType != "" {
		ident = append(ident, "("+v.BodyType+")")
	}
	if len(ident) > 0 {
		parts = append(parts, strings.Join(ident, " "))
	}
	if v.VIN != "" {
		parts = append(parts, "VIN "+v.VIN)
	}
	if v.Use != "" {
		parts = append(parts, "used for "+string(v.Use))
	}
	if v.BlindSpotWarning != nil {
		if *v.BlindSpotWarning {
			parts = append(parts, "has blind spot warning")
		} else {
			parts = append(parts, "no blind spot warning")
		}
	}
	if v.DaysPerWeek != nil {
		parts = append(parts, fmt.Sprintf("%d commute days per week", *v.DaysPerWeek))
	}
	if v.OneWayMiles != nil {
		parts = append(parts, fmt.Sprintf("%d miles one way", *v.OneWayMiles))
	}
	if v.AnnualMileage != nil {
		parts = append(parts, fmt.Sprintf("%d miles per year", *v.AnnualMileage))
	}
	return strings.Join(parts, ", ")
}
