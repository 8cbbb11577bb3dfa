package checkout

import "github.com/Papel-hub/talentoStore/utils"

// ValidTaxID checks an individual taxpayer number (CPF): eleven digits, not
// all the same, with two mod-11 check digits. Punctuation is ignored.
func ValidTaxID(s string) bool {
	d := utils.Digits(s)
	if len(d) != 11 {
		return false
	}
	same := true
	for i := 1; i < 11; i++ {
		if d[i] != d[0] {
			same = false
			break
		}
	}
	if same {
		return false
	}
	return checkDigit(d[:9]) == int(d[9]-'0') && checkDigit(d[:10]) == int(d[10]-'0')
}

// checkDigit weighs digits from len+1 down to 2.
func checkDigit(d string) int {
	sum := 0
	weight := len(d) + 1
	for i := 0; i < len(d); i++ {
		sum += int(d[i]-'0') * weight
		weight--
	}
	r := 11 - sum%11
	if r >= 10 {
		return 0
	}
	return r
}
