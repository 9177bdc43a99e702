package rules

import (
	"errors"
	"fmt"

	"github.com/petcare-labs/clinibook/services/booking-service/internal/model"
)

var ErrProfileMismatch = errors.New("staff profile incompatible with booking type")

// requiredProfile maps each booking type to the professional profile that
// must serve it. Checked at creation and on every staff/type change.
var requiredProfile = map[model.BookingType]model.StaffProfile{
	model.TypeConsultation: model.ProfileVeterinarian,
	model.TypeVaccination:  model.ProfileVeterinarian,
	model.TypeLabAnalysis:  model.ProfileVeterinarian,
	model.TypeGrooming:     model.ProfileAuxiliary,
	model.TypeBathing:      model.ProfileAuxiliary,
	model.TypeImaging:      model.ProfileTechnician,
}

func RequiredProfile(t model.BookingType) (model.StaffProfile, bool) {
	p, ok := requiredProfile[t]
	return p, ok
}

func ValidateProfile(t model.BookingType, profile model.StaffProfile) error {
	required, ok := requiredProfile[t]
	if !ok {
		return fmt.Errorf("%w: unknown booking type %q", ErrProfileMismatch, t)
	}
	if profile == "" {
		return fmt.Errorf("%w: staff member has no profile", ErrProfileMismatch)
	}
	if profile != required {
		return fmt.Errorf("%w: %s requires %s, staff is %s", ErrProfileMismatch, t, required, profile)
	}
	return nil
}
