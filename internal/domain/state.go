package domain

// State is a step of the onboarding conversation.
type State string

// Conversation states in collection order.
const (
	StateZipCode           State = "zip_code"
	StateFullName          State = "full_name"
	StateEmail             State = "email"
	StateVehicleChoice     State = "vehicle_choice"
	StateVehicleVIN        State = "vehicle_vin"
	StateVehicleYear       State = "vehicle_year"
	StateVehicleMake       State = "vehicle_make"
	StateVehicleBody       State = "vehicle_body"
	StateVehicleUse        State = "vehicle_use"
	StateBlindSpotWarning  State = "blind_spot_warning"
	StateCommuteDays       State = "commute_days"
	StateCommuteMiles      State = "commute_miles"
	StateAnnualMileage     State = "annual_mileage"
	StateAddAnotherVehicle State = "add_another_vehicle"
	StateLicenseType       State = "license_type"
	StateLicenseStatus     State = "license_status"
	StateComplete          State = "complete"
)

// InitialState is the state every new session starts in.
const InitialState = StateZipCode

// States lists every defined state.
var States = []State{
	StateZipCode,
	StateFullName,
	StateEmail,
	StateVehicleChoice,
	StateVehicleVIN,
	StateVehicleYear,
	StateVehicleMake,
	StateVehicleBody,
	StateVehicleUse,
	StateBlindSpotWarning,
	StateCommuteDays,
	StateCommuteMiles,
	StateAnnualMileage,
	StateAddAnotherVehicle,
	StateLicenseType,
	StateLicenseStatus,
	StateComplete,
}

// Valid reports whether s is one of the defined states.
func (s State) Valid() bool {
	for _, known := range States {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further data is collected in s.
func (s State) Terminal() bool {
	return s == StateComplete
}

// VehicleUse is how a vehicle is primarily driven.
type VehicleUse string

// Vehicle use categories.
const (
	UseCommuting  VehicleUse = "commuting"
	UseCommercial VehicleUse = "commercial"
	UseFarming    VehicleUse = "farming"
	UseBusiness   VehicleUse = "business"
)

// IDMode is how a vehicle was identified.
type IDMode string

// Vehicle identification modes.
const (
	ModeVIN    IDMode = "vin"
	ModeManual IDMode = "manual"
)

// Role identifies who authored a turn.
type Role string

// Transcript roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)
