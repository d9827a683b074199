package store

import (
	"fmt"
	"time"
)

// gregorianToJalali converts a Gregorian calendar date to the Jalali
// (Shamsi) calendar. Arithmetic-only conversion, valid for the date
// ranges attendance logs ever see.
func gregorianToJalali(gy, gm, gd int) (jy, jm, jd int) {
	gDayOfMonth := [12]int{0, 31, 59, 90, 120, 151, 181, 212, 243, 273, 304, 334}

	if gy > 1600 {
		jy = 979
		gy -= 1600
	} else {
		jy = 0
		gy -= 621
	}

	gy2 := gy
	if gm > 2 {
		gy2 = gy + 1
	}
	days := 365*gy + (gy2+3)/4 - (gy2+99)/100 + (gy2+399)/400 - 80 + gd + gDayOfMonth[gm-1]

	jy += 33 * (days / 12053)
	days %= 12053
	jy += 4 * (days / 1461)
	days %= 1461
	if days > 365 {
		jy += (days - 1) / 365
		days = (days - 1) % 365
	}

	if days < 186 {
		jm = 1 + days/31
		jd = 1 + days%31
	} else {
		jm = 7 + (days-186)/30
		jd = 1 + (days-186)%30
	}
	return jy, jm, jd
}

// DateLabel returns the Jalali day key used to partition attendance
// logs, e.g. "1404-06-07".
func DateLabel(t time.Time) string {
	jy, jm, jd := gregorianToJalali(t.Year(), int(t.Month()), t.Day())
	return fmt.Sprintf("%04d-%02d-%02d", jy, jm, jd)
}
