// internal/stats/types.go
package stats

// RawObservation is one member/day cell as fetched from a backing store.
// Fans is nil on days the member was not observed at all; that is not the
// same thing as an observed zero.
type RawObservation struct {
	Member string `json:"member"`
	Day    int    `json:"day"`
	Fans   *int64 `json:"fans,omitempty"`
}

// Observed reports whether the member was actually seen on this day.
func (o RawObservation) Observed() bool {
	return o.Fans != nil
}

// DerivedRow is a RawObservation with the per-day metrics attached.
type DerivedRow struct {
	Member string `json:"member"`
	Day    int    `json:"day"`
	Fans   *int64 `json:"fans,omitempty"`

	// DailyGain is the day-over-day fan increase, nil when either side of
	// the difference is unobserved or the counter went backwards.
	DailyGain *int64 `json:"daily_gain,omitempty"`

	// EffectiveTarget is the quota accrued since the member's join day.
	EffectiveTarget int64 `json:"effective_target"`

	// CarryOver is fans minus effective target; negative means behind.
	// Nil on unobserved days.
	CarryOver *int64 `json:"carry_over,omitempty"`

	SlightlyBehind bool `json:"slightly_behind"`
	SlightStreak   int  `json:"slight_streak"`
	Behind         bool `json:"behind"`

	// Left is set on every row of a member with no observation for the
	// dataset's newest day.
	Left bool `json:"left"`
}
