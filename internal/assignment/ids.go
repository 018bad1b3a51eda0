package assignment

import (
	"fmt"
	"regexp"
	"strconv"
)

var idPattern = regexp.MustCompile(`^ASN-(\d{4})-(\d{4,})$`)

// FormatID — ASN-<год>-<номер из 4 цифр>.
func FormatID(year, seq int) string {
	return fmt.Sprintf("ASN-%04d-%04d", year, seq)
}

func ParseID(id string) (year, seq int, ok bool) {
	m := idPattern.FindStringSubmatch(id)
	if m == nil {
		return 0, 0, false
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	seq, err = strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, false
	}
	return year, seq, true
}
