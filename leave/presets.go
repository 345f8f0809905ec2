/*
presets.go - Pre-built leave type configurations

PURPOSE:
  Provides ready-to-use TypeConfig values for common leave categories.
  These are convenience starting points that set up rules according to
  typical HR patterns; real deployments tune the numbers.

AVAILABLE PRESETS:
  StandardVacation: Annual vacation with capped carry-over
  AccruedVacation:  Vacation earned monthly after a waiting period
  SickLeave:        Sick days with no carry-over, no approval gate
  ParentalLeave:    Large fixed grant, documentation required
  FloatingHoliday:  Small fixed allowance, expires with the year
  Bereavement:      Small allowance for family emergencies

USAGE:
  cfg := leave.StandardVacation(25, 5)
  t, err := registry.CreateType(ctx, cfg)

SEE ALSO:
  - registry.go: validation and persistence of these configs
  - cmd/server/main.go: optional startup seeding
*/
package leave

// StandardVacation returns a vacation policy granted up front with
// carry-over capped at maxCarryOver days, expiring end of March.
func StandardVacation(annualDays, maxCarryOver float64) TypeConfig {
	return TypeConfig{
		Name:             "Vacation",
		Description:      "Annual vacation days",
		Color:            "#4CAF50",
		MaxDaysPerYear:   annualDays,
		RequiresApproval: true,
		CarryOver: CarryOverRules{
			Enabled:          true,
			MaxCarryOverDays: maxCarryOver,
			ExpiryMonths:     3,
		},
	}
}

// AccruedVacation returns a vacation policy earned monthly, with
// accrual starting after a probation period.
func AccruedVacation(annualDays float64, probationMonths int) TypeConfig {
	return TypeConfig{
		Name:             "Accrued Vacation",
		Description:      "Vacation earned monthly over the year",
		Color:            "#2196F3",
		MaxDaysPerYear:   annualDays,
		RequiresApproval: true,
		Accrual: AccrualRules{
			Enabled:                 true,
			AccrualRate:             annualDays / 12,
			MaxAccrualDays:          annualDays,
			StartAccrualAfterMonths: probationMonths,
		},
	}
}

// SickLeave returns a sick-day policy. No approval gate and no
// carry-over; unused days lapse at year end.
func SickLeave(annualDays float64) TypeConfig {
	return TypeConfig{
		Name:           "Sick Leave",
		Description:    "Paid sick days",
		Color:          "#FF9800",
		MaxDaysPerYear: annualDays,
	}
}

// ParentalLeave returns a one-time large grant requiring documentation.
func ParentalLeave(days float64) TypeConfig {
	return TypeConfig{
		Name:                  "Parental Leave",
		Description:           "Leave for new parents",
		Color:                 "#9C27B0",
		MaxDaysPerYear:        days,
		RequiresApproval:      true,
		RequiresDocumentation: true,
	}
}

// FloatingHoliday returns a small fixed allowance that expires with
// the calendar year.
func FloatingHoliday(days float64) TypeConfig {
	return TypeConfig{
		Name:           "Floating Holiday",
		Description:    "Personal holidays, use them or lose them",
		Color:          "#00BCD4",
		MaxDaysPerYear: days,
	}
}

// Bereavement returns a small allowance for family emergencies.
func Bereavement(days float64) TypeConfig {
	return TypeConfig{
		Name:             "Bereavement",
		Description:      "Leave following a family loss",
		Color:            "#607D8B",
		MaxDaysPerYear:   days,
		RequiresApproval: true,
	}
}

// DefaultPresets is the catalog seeded into fresh deployments.
func DefaultPresets() []TypeConfig {
	return []TypeConfig{
		StandardVacation(25, 5),
		SickLeave(10),
		ParentalLeave(90),
		FloatingHoliday(3),
		Bereavement(5),
	}
}
