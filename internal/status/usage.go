package status

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// usage is a used/total pair in GB, both rounded to two decimals.
type usage struct {
	used  float64
	total float64
}

func newUsage(usedBytes, totalBytes uint64) usage {
	return usage{used: toGB(usedBytes), total: toGB(totalBytes)}
}

func toGB(b uint64) float64 {
	return round2(float64(b) / gib)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// Percent is used/total*100, or 0 when total is 0.
func (u usage) Percent() float64 {
	if u.total == 0 {
		return 0
	}
	return u.used / u.total * 100
}

func (u usage) String() string {
	return fmt.Sprintf("%s / %s GB", pyFloat(u.used), pyFloat(u.total))
}

// pyFloat formats f in shortest form but always with a fractional part, so
// 2 renders as "2.0" and 2.5 as "2.5".
func pyFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
