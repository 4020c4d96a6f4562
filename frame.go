// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package ads131m

// WordSize is the size of a frame word, in bytes.
const WordSize = 3

// FrameSize returns the size, in bytes, of a frame for a device with the
// given number of channels.
func FrameSize(channels int) int {
	return (channels + 2) * WordSize
}

// PutWord writes a 16 bit value into the 24 bit word at b, MSB aligned.
func PutWord(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
	b[2] = 0
}

// Word returns the 16 bit value MSB aligned in the 24 bit word at b.
func Word(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

// PutCode writes a 24 bit two's complement conversion code into b.
func PutCode(b []byte, code int32) {
	b[0] = byte(code >> 16)
	b[1] = byte(code >> 8)
	b[2] = byte(code)
}

// Code returns the sign extended 24 bit conversion code at b.
func Code(b []byte) int32 {
	return int32(uint32(b[0])<<24|uint32(b[1])<<16|uint32(b[2])<<8) >> 8
}

// Status is the contents of the STATUS register, as returned in response to
// a NULL command.
type Status uint16

// Lock returns true if the interface is locked.
func (s Status) Lock() bool {
	return s&0x8000 != 0
}

// Resync returns true if the channels have been resynchronised.
func (s Status) Resync() bool {
	return s&0x4000 != 0
}

// RegMap returns true if the register map CRC has changed.
func (s Status) RegMap() bool {
	return s&0x2000 != 0
}

// CRCErr returns true if the device detected a CRC error in the input frame.
func (s Status) CRCErr() bool {
	return s&0x1000 != 0
}

// CRCType returns the type of the frame CRC.
func (s Status) CRCType() CRCType {
	if s&0x0800 != 0 {
		return CRCANSI
	}
	return CRCCCITT
}

// Reset returns true if the device has been reset since the RESET bit of
// the MODE register was last cleared.
func (s Status) Reset() bool {
	return s&0x0400 != 0
}

// WordLength returns the WLENGTH code of the frame word.
func (s Status) WordLength() int {
	return int(s>>8) & 0x03
}

// DRDY returns true if new data is available for channel ch.
func (s Status) DRDY(ch int) bool {
	return s&(1<<uint(ch&0x07)) != 0
}

// Sample is the content of a frame returned by the device.
type Sample struct {
	// Response is the response word, the response to the command sent in
	// the preceding frame.
	Response uint16

	// Status is the Response interpreted as the STATUS register.
	//
	// Only valid when the preceding command was NULL.
	Status Status

	// Codes contains the conversion code of each channel.
	Codes []int32

	// CRC is the CRC word sent by the device.
	CRC uint16

	// CRCValid is true if CRC matches the CRC of the rest of the frame.
	CRCValid bool
}

// DecodeFrame decodes a frame received from a device with the given number of
// channels.
//
// A CRC mismatch is reported in the Sample, not as an error.
func DecodeFrame(b []byte, channels int, ct CRCType) Sample {
	s := Sample{
		Response: Word(b),
		Codes:    make([]int32, channels),
	}
	s.Status = Status(s.Response)
	for i := range s.Codes {
		s.Codes[i] = Code(b[(i+1)*WordSize:])
	}
	crcOff := (channels + 1) * WordSize
	s.CRC = Word(b[crcOff:])
	s.CRCValid = Checksum(ct, b[:crcOff]) == s.CRC
	return s
}

// EncodeFrame encodes a frame as sent by a device.
//
// Used by simulators and tests.
func EncodeFrame(b []byte, response uint16, codes []int32, ct CRCType) {
	PutWord(b, response)
	for i, c := range codes {
		PutCode(b[(i+1)*WordSize:], c)
	}
	crcOff := (len(codes) + 1) * WordSize
	PutWord(b[crcOff:], Checksum(ct, b[:crcOff]))
}
