package pagination

// BumpTrailingNumber increments the trailing decimal digits of id, keeping
// their zero-padded width: "A000123" -> "A000124", "X99" -> "X100".
// An id without trailing digits is returned unchanged.
func BumpTrailingNumber(id string) string {
	end := len(id)
	start := end
	for start > 0 && isDigit(id[start-1]) {
		start--
	}
	if start == end {
		return id
	}

	digits := []byte(id[start:end])
	i := len(digits) - 1
	for ; i >= 0; i-- {
		if digits[i] < '9' {
			digits[i]++
			break
		}
		digits[i] = '0'
	}
	if i < 0 {
		digits = append([]byte{'1'}, digits...)
	}

	return id[:start] + string(digits)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
