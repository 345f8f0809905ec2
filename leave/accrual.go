/*
accrual.go - Entitlement arithmetic

PURPOSE:
  Pure functions computing how many days an employee is entitled to for a
  leave type in a year: the base grant or accrued amount, plus carried
  days from the prior year subject to cap and expiry.

FRACTIONAL ACCRUAL:
  A rate of 1.67 days/month yields fractional balances. Amounts stay
  fractional in decimal form throughout; only display code rounds.

CARRY-OVER EXPIRY:
  Carried days expire ExpiryMonths after the year rollover (Jan 1). The
  expiry is evaluated on every read against the as-of date, so an expired
  window lowers TotalEntitlement and Remaining retroactively, not just at
  rollover time.
*/
package leave

import "github.com/shopspring/decimal"

// =============================================================================
// ENTITLEMENT
// =============================================================================

// BaseEntitlement returns the entitlement for a leave type as of a date,
// excluding carry-over.
//
// Accrual disabled: the full MaxDaysPerYear is granted up front.
// Accrual enabled:  min(MaxAccrualDays, AccrualRate * months elapsed
// since hireDate + StartAccrualAfterMonths), never negative.
func BaseEntitlement(t *LeaveType, hireDate, asOf Date) decimal.Decimal {
	if !t.Accrual.Enabled {
		return decimal.NewFromFloat(t.MaxDaysPerYear)
	}

	accrualStart := hireDate.AddMonths(t.Accrual.StartAccrualAfterMonths)
	months := MonthsElapsed(accrualStart, asOf)
	if months <= 0 {
		return decimal.Zero
	}

	accrued := decimal.NewFromFloat(t.Accrual.AccrualRate).Mul(decimal.NewFromInt(int64(months)))
	cap := decimal.NewFromFloat(t.Accrual.MaxAccrualDays)
	if accrued.GreaterThan(cap) {
		return cap
	}
	return accrued
}

// CarryOverGrant caps the prior year's remaining days at the configured
// maximum. Returns zero when carry-over is disabled or nothing remained.
func CarryOverGrant(t *LeaveType, priorRemaining decimal.Decimal) decimal.Decimal {
	if !t.CarryOver.Enabled || !priorRemaining.IsPositive() {
		return decimal.Zero
	}
	cap := decimal.NewFromFloat(t.CarryOver.MaxCarryOverDays)
	if priorRemaining.GreaterThan(cap) {
		return cap
	}
	return priorRemaining
}

// CarryOverActive reports whether carried days still count as of a date.
// The window opens at the year rollover (Jan 1) and closes ExpiryMonths
// later. ExpiryMonths <= 0 means the window never closes.
func CarryOverActive(t *LeaveType, year int, asOf Date) bool {
	if !t.CarryOver.Enabled {
		return false
	}
	if t.CarryOver.ExpiryMonths <= 0 {
		return true
	}
	expiry := StartOfYear(year).AddMonths(t.CarryOver.ExpiryMonths)
	return asOf.Before(expiry)
}

// EffectiveEntitlement combines base entitlement with whatever portion of
// the carried days is still inside its expiry window.
func EffectiveEntitlement(t *LeaveType, hireDate Date, year int, carryOver decimal.Decimal, asOf Date) decimal.Decimal {
	base := BaseEntitlement(t, hireDate, asOf)
	if CarryOverActive(t, year, asOf) {
		return base.Add(carryOver)
	}
	return base
}
