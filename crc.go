// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package ads131m

// CRCType selects the polynomial of the frame CRC.
type CRCType int

const (
	// CRCCCITT is the CRC-16-CCITT polynomial, x^16 + x^12 + x^5 + 1.
	CRCCCITT CRCType = iota

	// CRCANSI is the CRC-16-ANSI polynomial, x^16 + x^15 + x^2 + 1.
	CRCANSI
)

const crcSeed = 0xffff

var crcTables = [2][256]uint16{
	makeTable(0x1021),
	makeTable(0x8005),
}

func makeTable(poly uint16) (t [256]uint16) {
	for i := range t {
		crc := uint16(i) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return
}

// Checksum returns the CRC of data, MSB first, seeded with 0xffff, as
// computed by the device over a frame.
func Checksum(t CRCType, data []byte) uint16 {
	table := &crcTables[t&1]
	crc := uint16(crcSeed)
	for _, b := range data {
		crc = crc<<8 ^ table[byte(crc>>8)^b]
	}
	return crc
}

func (t CRCType) String() string {
	if t == CRCANSI {
		return "ansi"
	}
	return "ccitt"
}

// ParseCRCType returns the CRCType named by s, "ccitt" or "ansi".
func ParseCRCType(s string) (CRCType, error) {
	switch s {
	case "ccitt", "CCITT", "":
		return CRCCCITT, nil
	case "ansi", "ANSI":
		return CRCANSI, nil
	}
	return CRCCCITT, ErrInvalidCRCType
}
