package assistant

import "github.com/ashureev/onboard-chat/internal/domain"

// Welcome is the opening message used when generation is unavailable.
const Welcome = "Hi! I'm here to help you get set up with your insurance. To get started, could you please provide your ZIP code?"

// WelcomeHint is passed as extra context when generating the opening message.
const WelcomeHint = "This is the start of the conversation. Greet the user warmly, introduce yourself as their onboarding assistant, and ask for their ZIP code."

var fallbacks = map[domain.State]string{
	domain.StateZipCode:           "Could you please provide your ZIP code?",
	domain.StateFullName:          "What is your full name?",
	domain.StateEmail:             "What is your email address?",
	domain.StateVehicleChoice:     "Would you like to enter a VIN or provide Year, Make, and Body Type?",
	domain.StateVehicleVIN:        "Please enter the 17-character VIN.",
	domain.StateVehicleYear:       "What year is the vehicle?",
	domain.StateVehicleMake:       "What is the make of the vehicle?",
	domain.StateVehicleBody:       "What is the body type?",
	domain.StateVehicleUse:        "How do you use this vehicle? (Commuting, Commercial, Farming, Business)",
	domain.StateBlindSpotWarning:  "Does this vehicle have blind spot warning? (Yes/No)",
	domain.StateCommuteDays:       "How many days per week do you commute?",
	domain.StateCommuteMiles:      "How many miles is your one-way commute?",
	domain.StateAnnualMileage:     "What is your estimated annual mileage?",
	domain.StateAddAnotherVehicle: "Would you like to add another vehicle?",
	domain.StateLicenseType:       "What type of US license do you have? (Foreign, Personal, Commercial)",
	domain.StateLicenseStatus:     "What is your license status? (Valid/Suspended)",
	domain.StateComplete:          "Thank you! Your information has been collected successfully.",
}

// Fallback returns the fixed reply for state.
func Fallback(state domain.State) string {
	if s, ok := fallbacks[state]; ok {
		return s
	}
	return "I'm sorry, could you repeat that?"
}
