// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package ads131m

// Resolution is the width of a conversion code, in bits.
const Resolution = 24

// DefaultVref is the internal reference voltage.
const DefaultVref = 2.4

// LSBWeight returns the voltage represented by one code step for the given
// reference voltage and PGA gain.
func LSBWeight(vref float64, gain int) float64 {
	return (vref / float64(gain)) / float64(uint32(1)<<(Resolution-1))
}

// Scale returns the voltage represented by code.
func Scale(code int32, lsb float64) float64 {
	return float64(code) * lsb
}
