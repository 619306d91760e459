// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

// ParseDecimal parses a leading decimal integer the way C atoi does: leading
// whitespace and one sign are accepted, parsing stops at the first non-digit,
// and text without digits yields 0. Results saturate to the int32 range.
func ParseDecimal(s string) int {
	i := skipSpace(s)
	i, neg := parseSign(s, i)
	v, _ := accumulate(s, i, 10)
	return saturate(v, neg)
}

// ParseInteger parses a leading integer with automatic base detection the way
// C strtol(s, NULL, 0) does: "0x"/"0X" selects hexadecimal, a leading "0"
// selects octal, anything else is decimal. Results saturate to the int32 range.
func ParseInteger(s string) int {
	i := skipSpace(s)
	i, neg := parseSign(s, i)

	base := 10
	if i < len(s) && s[i] == '0' {
		if i+2 < len(s) && (s[i+1] == 'x' || s[i+1] == 'X') && digitValue(s[i+2]) < 16 {
			base = 16
			i += 2
		} else {
			base = 8
		}
	}

	v, _ := accumulate(s, i, base)
	return saturate(v, neg)
}

// parseStrictDecimal reports whether s is entirely an optionally signed
// decimal integer within int32 range. Used for diagnostics only.
func parseStrictDecimal(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	i, neg := parseSign(s, 0)
	v, end := accumulate(s, i, 10)
	if end == i || end != len(s) || v > maxInt32+1 || (!neg && v > maxInt32) {
		return 0, false
	}
	return saturate(v, neg), true
}

// decimalOverflows reports whether the leading decimal integer of s lies
// outside the int32 range and was saturated by ParseDecimal
func decimalOverflows(s string) bool {
	i, neg := parseSign(s, skipSpace(s))
	v, _ := accumulate(s, i, 10)
	if neg {
		return v > maxInt32+1
	}
	return v > maxInt32
}

func skipSpace(s string) int {
	i := 0
	for i < len(s) {
		switch s[i] {
		case ' ', '\t', '\n', '\v', '\f', '\r':
			i++
		default:
			return i
		}
	}
	return i
}

func parseSign(s string, i int) (int, bool) {
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		return i + 1, s[i] == '-'
	}
	return i, false
}

// accumulate reads digits of the given base starting at i. The magnitude is
// clamped just past the int32 range so it never overflows.
func accumulate(s string, i, base int) (int64, int) {
	var v int64
	for ; i < len(s); i++ {
		d := digitValue(s[i])
		if d >= base {
			break
		}
		v = v*int64(base) + int64(d)
		if v > maxInt32+2 {
			v = maxInt32 + 2
		}
	}
	return v, i
}

func digitValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	default:
		return 36
	}
}

func saturate(v int64, neg bool) int {
	if neg {
		v = -v
	}
	if v > maxInt32 {
		return maxInt32
	}
	if v < minInt32 {
		return minInt32
	}
	return int(v)
}
