package utils

import "strconv"

var memoryUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FmtMemory renders a byte count with one decimal in the largest fitting unit, e.g. "12.5MB".
func FmtMemory(bytes uint64) string {
	value := float64(bytes)
	unit := 0
	for value >= 1024 && unit < len(memoryUnits)-1 {
		value /= 1024
		unit++
	}
	if unit == 0 {
		return strconv.FormatUint(bytes, 10) + memoryUnits[0]
	}
	return strconv.FormatFloat(value, 'f', 1, 64) + memoryUnits[unit]
}
