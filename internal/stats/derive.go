// internal/stats/derive.go
package stats

import (
	"sort"

	"go.uber.org/zap"

	"github.com/clubforge/fantrack/internal/store"
)

const (
	// severeDeficit is the carry-over magnitude past which a member is
	// behind outright, with no streak grace.
	severeDeficit = 700_000

	// chronicStreakLimit is how many consecutive slightly-behind days a
	// member gets before mild lateness escalates to behind.
	chronicStreakLimit = 5
)

// Deriver turns raw cumulative fan counters into per-day metrics.
type Deriver struct {
	quotaPerDay int64
	logger      *zap.Logger
}

// NewDeriver creates a Deriver with the club's daily quota.
func NewDeriver(quotaPerDay int64, logger *zap.Logger) *Deriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deriver{quotaPerDay: quotaPerDay, logger: logger}
}

// Derive computes the full derived grid for one dataset. The output holds
// one row per member per day from 1 through the newest observed day,
// ordered by member then day, so callers and the cache see a stable shape
// regardless of how sparse the input was.
func (d *Deriver) Derive(obs []RawObservation) ([]DerivedRow, error) {
	maxDay := 0
	series := make(map[string]map[int]*int64)
	for _, o := range obs {
		if o.Day < 1 {
			continue
		}
		if _, ok := series[o.Member]; !ok {
			series[o.Member] = make(map[int]*int64)
		}
		series[o.Member][o.Day] = o.Fans
		if o.Observed() && o.Day > maxDay {
			maxDay = o.Day
		}
	}

	if maxDay == 0 {
		return nil, &store.DataIntegrityError{Reason: "dataset has no observed rows"}
	}

	members := make([]string, 0, len(series))
	for m := range series {
		members = append(members, m)
	}
	sort.Strings(members)

	rows := make([]DerivedRow, 0, len(members)*maxDay)
	for _, member := range members {
		rows = append(rows, d.deriveMember(member, series[member], maxDay)...)
	}
	return rows, nil
}

// deriveMember produces the per-day rows for one member.
func (d *Deriver) deriveMember(member string, days map[int]*int64, maxDay int) []DerivedRow {
	gains := make([]*int64, maxDay+1) // 1-based
	for day := 1; day <= maxDay; day++ {
		cur := days[day]
		if cur == nil {
			continue
		}
		// Day 1 gains against an implicit zero baseline; later days need
		// the previous day observed and a non-negative difference.
		var prev int64
		if day > 1 {
			p := days[day-1]
			if p == nil {
				continue
			}
			prev = *p
		}
		diff := *cur - prev
		if diff < 0 {
			continue
		}
		gains[day] = &diff
	}

	// Join day: first day with a positive gain. Zero means the member
	// never produced fans this period.
	joinDay := 0
	for day := 1; day <= maxDay; day++ {
		if gains[day] != nil && *gains[day] > 0 {
			joinDay = day
			break
		}
	}

	left := days[maxDay] == nil

	rows := make([]DerivedRow, 0, maxDay)
	streak := 0
	for day := 1; day <= maxDay; day++ {
		row := DerivedRow{
			Member:    member,
			Day:       day,
			Fans:      days[day],
			DailyGain: gains[day],
			Left:      left,
		}

		if joinDay > 0 && day >= joinDay {
			row.EffectiveTarget = d.quotaPerDay * int64(day-joinDay+1)
		}

		if row.Fans == nil {
			// Break in observation resets the streak.
			streak = 0
		} else {
			carry := *row.Fans - row.EffectiveTarget
			row.CarryOver = &carry

			switch {
			case carry < -severeDeficit:
				streak = 0
				row.Behind = true
			case carry < 0:
				row.SlightlyBehind = true
				streak++
				row.Behind = streak > chronicStreakLimit
			default:
				streak = 0
			}
		}
		row.SlightStreak = streak

		rows = append(rows, row)
	}
	return rows
}
