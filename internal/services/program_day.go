package services

import "time"

// TruncateToDay normalizes a timestamp to midnight UTC. Program day math works
// on whole dates; without this, a start date stored at 09:00 and a trigger
// firing at 08:00 would disagree about how many days have elapsed.
func TruncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ProgramDay returns the 1-based day of the program on the target date. The
// start date itself is day 1. Dates before the start yield values <= 0.
func ProgramDay(startDate time.Time, target time.Time) int {
	start := TruncateToDay(startDate)
	end := TruncateToDay(target)
	return int(end.Sub(start).Hours()/24) + 1
}

// WeekAndDay maps a program day onto the template's (week, day) grid:
// week 1 day 1 = program day 1, week 1 day 7 = program day 7,
// week 2 day 1 = program day 8.
func WeekAndDay(programDay int) (int, int) {
	week := (programDay-1)/7 + 1
	day := (programDay-1)%7 + 1
	return week, day
}
