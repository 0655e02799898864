// Package dsp holds the level conversions shared by the render graph and the
// effect nodes.
package dsp

import (
	"math"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
)

// FlushDenormals converts denormal numbers to zero to avoid performance issues
func FlushDenormals(x float32) float32 {
	return float32(dspcore.FlushDenormals(float64(x)))
}

// DBToGain converts decibels to a linear amplitude factor.
func DBToGain(db float64) float64 {
	return dspcore.DBToLinear(db)
}

// GainToDB converts a linear amplitude factor to decibels. Zero and negative
// factors map to -Inf.
func GainToDB(g float64) float64 {
	if g <= 0 {
		return math.Inf(-1)
	}
	return dspcore.LinearToDB(g)
}
