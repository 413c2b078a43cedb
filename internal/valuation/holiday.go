package valuation

import "time"

var fixedHolidays = map[string]string{
	"01-01": "New Year's Day",
	"03-01": "Independence Movement Day",
	"05-05": "Children's Day",
	"06-06": "Memorial Day",
	"08-15": "Liberation Day",
	"10-03": "National Foundation Day",
	"10-09": "Hangul Day",
	"12-25": "Christmas Day",
}

// Lunar calendar holidays, precomputed per year.
var lunarHolidays = map[int]map[string]string{
	2024: {
		"02-09": "Seollal holiday", "02-10": "Seollal", "02-11": "Seollal holiday", "02-12": "Seollal substitute holiday",
		"05-15": "Buddha's Birthday",
		"09-16": "Chuseok holiday", "09-17": "Chuseok", "09-18": "Chuseok holiday",
	},
	2025: {
		"01-28": "Seollal holiday", "01-29": "Seollal", "01-30": "Seollal holiday",
		"05-05": "Buddha's Birthday",
		"10-05": "Chuseok holiday", "10-06": "Chuseok", "10-07": "Chuseok holiday", "10-08": "Chuseok substitute holiday",
	},
	2026: {
		"02-16": "Seollal holiday", "02-17": "Seollal", "02-18": "Seollal holiday",
		"05-24": "Buddha's Birthday", "05-25": "Buddha's Birthday substitute holiday",
		"09-24": "Chuseok holiday", "09-25": "Chuseok", "09-26": "Chuseok holiday",
	},
	2027: {
		"02-05": "Seollal holiday", "02-06": "Seollal", "02-07": "Seollal holiday", "02-08": "Seollal substitute holiday",
		"05-13": "Buddha's Birthday",
		"09-14": "Chuseok holiday", "09-15": "Chuseok", "09-16": "Chuseok holiday",
	},
	2028: {
		"01-25": "Seollal holiday", "01-26": "Seollal", "01-27": "Seollal holiday",
		"05-02": "Buddha's Birthday",
		"10-02": "Chuseok holiday", "10-03": "Chuseok", "10-04": "Chuseok holiday",
	},
	2029: {
		"02-12": "Seollal holiday", "02-13": "Seollal", "02-14": "Seollal holiday",
		"05-20": "Buddha's Birthday", "05-21": "Buddha's Birthday substitute holiday",
		"09-21": "Chuseok holiday", "09-22": "Chuseok", "09-23": "Chuseok holiday", "09-24": "Chuseok substitute holiday",
	},
	2030: {
		"02-02": "Seollal holiday", "02-03": "Seollal", "02-04": "Seollal holiday",
		"05-09": "Buddha's Birthday",
		"09-11": "Chuseok holiday", "09-12": "Chuseok", "09-13": "Chuseok holiday",
	},
}

// IsPublicHoliday reports whether the date is a fixed or lunar public holiday.
func IsPublicHoliday(date time.Time) (bool, string) {
	monthDay := date.Format("01-02")
	if name, ok := fixedHolidays[monthDay]; ok {
		return true, name
	}
	if name, ok := lunarHolidays[date.Year()][monthDay]; ok {
		return true, name
	}
	return false, ""
}

// IsHoliday reports whether the date is a weekend or public holiday, with the reason.
func IsHoliday(date time.Time) (bool, string) {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return true, date.Weekday().String()
	}
	return IsPublicHoliday(date)
}
