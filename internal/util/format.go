// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"fmt"
	"strings"
)

// FormatEUR renders a monetary amount as a euro string with thousands
// separators, e.g. 1234567.5 -> "1 234 568 EUR". Amounts are rounded to
// whole euros.
func FormatEUR(amount float64) string {
	return GroupDigits(fmt.Sprintf("%.0f", amount)) + " EUR"
}

// GroupDigits inserts thin-space separators every three digits, counting
// from the right. A leading sign is preserved.
func GroupDigits(digits string) string {
	neg := strings.HasPrefix(digits, "-")
	if neg {
		digits = digits[1:]
	}
	n := len(digits)
	if n <= 3 {
		if neg {
			return "-" + digits
		}
		return digits
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := n % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < n; i += 3 {
		if b.Len() > 0 && !(neg && b.Len() == 1) {
			b.WriteByte(' ')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatPercent renders a ratio in [0,1] as a percentage string,
// e.g. 0.85 -> "85%".
func FormatPercent(ratio float64) string {
	return fmt.Sprintf("%.0f%%", ratio*100)
}
