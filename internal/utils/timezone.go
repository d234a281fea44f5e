package utils

import "time"

func ResolveLocation(tz string) *time.Location {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

func CurrentDateInTimezone(tz string) string {
	return time.Now().In(ResolveLocation(tz)).Format("2006-01-02")
}

func CurrentTimeInTimezone(tz string) string {
	return time.Now().In(ResolveLocation(tz)).Format("15:04")
}
