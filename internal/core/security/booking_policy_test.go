package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicore/internal/core/apperror"
)

func workingHoursBooking() BookingInput {
	return BookingInput{
		DurationMinutes: 60,
		StartHour:       10,
		Weekday:         2,
		LineCount:       1,
		TotalAmount:     80.0,
	}
}

func TestDefaultRuleAcceptsAnyRealBooking(t *testing.T) {
	policy, err := NewBookingPolicy("")
	require.NoError(t, err)

	assert.Equal(t, DefaultBookingRule, policy.Rule())
	assert.NoError(t, policy.Check(workingHoursBooking()))
}

func TestCustomRule(t *testing.T) {
	policy, err := NewBookingPolicy("start_hour >= 8 && start_hour < 20 && weekday <= 6")
	require.NoError(t, err)

	assert.NoError(t, policy.Check(workingHoursBooking()))

	early := workingHoursBooking()
	early.StartHour = 6
	err = policy.Check(early)
	assert.True(t, apperror.HasCode(err, apperror.CodeBookingPolicy))

	sunday := workingHoursBooking()
	sunday.Weekday = 7
	err = policy.Check(sunday)
	assert.True(t, apperror.HasCode(err, apperror.CodeBookingPolicy))
}

func TestRuleOverAmountAndLines(t *testing.T) {
	policy := MustBookingPolicy("total_amount <= 500.0 && line_count <= 5")

	assert.NoError(t, policy.Check(workingHoursBooking()))

	big := workingHoursBooking()
	big.TotalAmount = 750.0
	assert.Error(t, policy.Check(big))
}

func TestCompileErrors(t *testing.T) {
	_, err := NewBookingPolicy("start_hour >=")
	assert.Error(t, err)

	// Rules must yield a boolean, not a number.
	_, err = NewBookingPolicy("duration_minutes + 1")
	assert.Error(t, err)

	// Unknown variables are rejected at compile time.
	_, err = NewBookingPolicy("moon_phase == 3")
	assert.Error(t, err)
}
