package domain

// Vehicle is one vehicle being onboarded within a session.
type Vehicle struct {
	Mode             IDMode     `json:"mode,omitempty"`
	VIN              string     `json:"vin,omitempty"`
	Year             int        `json:"year,omitempty"`
	Make             string     `json:"make,omitempty"`
	Model            string     `json:"model,omitempty"`
	BodyType         string     `json:"body_type,omitempty"`
	Use              VehicleUse `json:"vehicle_use,omitempty"`
	BlindSpotWarning *bool      `json:"blind_spot_warning,omitempty"`
	DaysPerWeek      *int       `json:"days_per_week,omitempty"`
	OneWayMiles      *int       `json:"one_way_miles,omitempty"`
	AnnualMileage    *int       `json:"annual_mileage,omitempty"`
	Warning          string     `json:"warning,omitempty"`
}

// Identified reports whether the identification fields for the vehicle's mode are set.
func (v *Vehicle) Identified() bool {
	switch v.Mode {
	case ModeVIN:
		return v.VIN != ""
	case ModeManual:
		return v.Year != 0 && v.Make != "" && v.BodyType != ""
	default:
		return false
	}
}

// Complete reports whether identification and use-conditional fields are populated.
func (v *Vehicle) Complete() bool {
	if !v.Identified() || v.Use == "" || v.BlindSpotWarning == nil {
		return false
	}
	if v.Use == UseCommuting {
		return v.DaysPerWeek != nil && v.OneWayMiles != nil
	}
	return v.AnnualMileage != nil
}

func (v Vehicle) clone() Vehicle {
	c := v
	c.BlindSpotWarning = clonePtr(v.BlindSpotWarning)
	c.DaysPerWeek = clonePtr(v.DaysPerWeek)
	c.OneWayMiles = clonePtr(v.OneWayMiles)
	c.AnnualMileage = clonePtr(v.AnnualMileage)
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
