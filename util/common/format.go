package common

import (
	"fmt"
	"math"
)

// BytesPerGB is the divisor used for every *_gb field (binary gigabyte).
const BytesPerGB = 1 << 30

func FormatTraffic(trafficBytes int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	unitIndex := 0
	size := float64(trafficBytes)

	for size >= 1024 && unitIndex < len(units)-1 {
		size /= 1024
		unitIndex++
	}
	return fmt.Sprintf("%.2f%s", size, units[unitIndex])
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// BytesToGB converts a byte counter into unrounded gigabytes.
func BytesToGB(b int64) float64 {
	return float64(b) / BytesPerGB
}
