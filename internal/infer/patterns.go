package infer

// Date and time patterns are written one token per byte:
//
//	Y  4-digit year            y  2-digit year (20yy)
//	m  month, 1-2 digits       M  month, exactly 2 digits
//	d  day, 1-2 digits         D  day, exactly 2 digits
//	B  month name, long or 3-letter short, any case
//	S  one of '-', '/', '.'    ,  optional comma
//	H  hour 0-23, 2 digits     h  hour 0-23, 1-2 digits
//	I  hour 1-12, 1-2 digits   i  minute, 2 digits
//	s  optional ":SS"          f  optional ".fffffffff" (1-9 digits)
//	p  optional space, then AM or PM in any case
//	z  optional 'Z'            o  optional space, then a signed HH:MM offset
//
// Any other byte matches itself.

var datePatterns = []string{
	"YSmSd",
	"mSdSY",
	"YMD",
	"B d, Y",
	"d B, Y",
	"d Y B",
	"Y B d",
	"Y d B",
	"ySmSd",
	"yMD",
	"mSdSy",
	"B d, y",
	"d B, y",
	"d y B",
	"y B d",
	"y d B",
}

var timePatterns = []string{
	"h:isf",
	"I:isfp",
}

var datetime2Patterns = []string{
	"Y-m-dTH:isfz",
	"YSmSd h:isfz",
	"YMD h:isfz",
	"mSdSY h:isfz",
	"B d, Y h:isfz",
	"d B, Y h:isfz",
	"d Y B h:isfz",
	"Y B d h:isfz",
	"Y d B h:isfz",
	"ySmSd h:isfz",
	"yMD h:isfz",
	"mSdSy h:isfz",
	"B d, y h:isfz",
	"d B, y h:isfz",
	"d y B h:isfz",
	"y B d h:isfz",
	"y d B h:isfz",
	"YSmSd I:isfpz",
	"YMD I:isfpz",
	"mSdSY I:isfpz",
	"B d, Y I:isfpz",
	"d B, Y I:isfpz",
	"d Y B I:isfpz",
	"Y B d I:isfpz",
	"Y d B I:isfpz",
	"ySmSd I:isfpz",
	"yMD I:isfpz",
	"mSdSy I:isfpz",
	"B d, y I:isfpz",
	"d B, y I:isfpz",
	"d y B I:isfpz",
	"y B d I:isfpz",
	"y d B I:isfpz",
}

var datetimeoffsetPatterns = []string{
	"Y-m-dTH:isfo",
	"YSmSd h:isfo",
	"YMD h:isfo",
	"mSdSY h:isfo",
	"B d, Y h:isfo",
	"d B, Y h:isfo",
	"d Y B h:isfo",
	"Y B d h:isfo",
	"Y d B h:isfo",
	"ySmSd h:isfo",
	"yMD h:isfo",
	"mSdSy h:isfo",
	"B d, y h:isfo",
	"d B, y h:isfo",
	"d y B h:isfo",
	"y B d h:isfo",
	"y d B h:isfo",
	"YSmSd I:isfpo",
	"YMD I:isfpo",
	"mSdSY I:isfpo",
	"B d, Y I:isfpo",
	"d B, Y I:isfpo",
	"d Y B I:isfpo",
	"Y B d I:isfpo",
	"Y d B I:isfpo",
	"ySmSd I:isfpo",
	"yMD I:isfpo",
	"mSdSy I:isfpo",
	"B d, y I:isfpo",
	"d B, y I:isfpo",
	"d y B I:isfpo",
	"y B d I:isfpo",
	"y d B I:isfpo",
}

// Compact all-digit date forms. A value matching one of these is also a
// valid integer.
var compactDatePatterns = []string{"YMD", "yMD"}

var (
	// DATETIME2 also holds bare dates (at midnight) and bare times (on
	// 1900-01-01), so those forms follow the combined patterns.
	datetime2Variants = concat(datetime2Patterns, datePatterns, timePatterns)

	// Values without a zone are read as +00:00.
	datetimeoffsetVariants = concat(datetimeoffsetPatterns, datetime2Variants)
)

var monthNames = [12]string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

func concat(lists ...[]string) []string {
	var n int
	for _, l := range lists {
		n += len(l)
	}
	out := make([]string, 0, n)
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
