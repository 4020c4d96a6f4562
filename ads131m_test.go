// SPDX-FileCopyrightText: 2024 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package ads131m_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/ads131m"
	"github.com/warthog618/ads131m/mockup"
	"github.com/warthog618/ads131m/pin"
	"github.com/warthog618/ads131m/spi"
)

func newADC(t *testing.T, dopts []mockup.ADS131MOption, options ...ads131m.Option) (*ads131m.ADC, *mockup.ADS131M) {
	t.Helper()
	d := mockup.NewADS131M(dopts...)
	tr, err := spi.NewTransport(d, d.CS())
	require.Nil(t, err)
	sr, err := pin.NewSyncReset(d.SyncReset())
	require.Nil(t, err)
	a, err := ads131m.New(tr, sr, options...)
	require.Nil(t, err)
	return a, d
}

func TestNew(t *testing.T) {
	d := mockup.NewADS131M()
	tr, err := spi.NewTransport(d, d.CS())
	require.Nil(t, err)
	sr, err := pin.NewSyncReset(d.SyncReset())
	require.Nil(t, err)

	a, err := ads131m.New(tr, sr)
	require.Nil(t, err)
	assert.Equal(t, 4, a.Channels())
	assert.Equal(t, 8, a.Gain())
	assert.Equal(t, ads131m.Unconfigured, a.State())
	assert.InDelta(t, (2.4/8.0)/8388608.0, a.LSBWeight(), 1e-18)
	assert.Equal(t, 1000.0, a.DataRate())
	assert.Equal(t, ads131m.DefaultRegisters(4), a.Registers())
	// nothing sent until reset
	assert.Equal(t, 0, d.Frames())

	patterns := []struct {
		name    string
		options []ads131m.Option
		err     error
	}{
		{"no channels", []ads131m.Option{ads131m.WithChannels(0)}, ads131m.ErrInvalidChannels},
		{"too many channels", []ads131m.Option{ads131m.WithChannels(9)}, ads131m.ErrInvalidChannels},
		{"gain", []ads131m.Option{ads131m.WithGain(6)}, ads131m.ErrInvalidGain},
		{"clock", []ads131m.Option{ads131m.WithClockIn(0)}, pin.ErrClockIn},
	}
	for _, p := range patterns {
		a, err := ads131m.New(tr, sr, p.options...)
		assert.True(t, errors.Is(err, p.err), p.name)
		assert.Nil(t, a, p.name)
	}

	a, err = ads131m.New(tr, sr,
		ads131m.WithVref(1.2),
		ads131m.WithGain(1),
		ads131m.WithOSR(ads131m.OSR128),
		ads131m.WithClockIn(8192000))
	require.Nil(t, err)
	assert.InDelta(t, 1.2/8388608.0, a.LSBWeight(), 1e-18)
	assert.Equal(t, 32000.0, a.DataRate())
}

func TestReset(t *testing.T) {
	a, d := newADC(t, nil)

	err := a.Reset()
	require.Nil(t, err)
	assert.Equal(t, ads131m.Configured, a.State())
	assert.Equal(t, 1, d.Resets())
	assert.Equal(t, 0, d.Syncs())
	// RESET flag cleared in both device and shadow
	assert.Equal(t, uint16(0x0110), d.Registers()[ads131m.RegMode])
	assert.Equal(t, uint16(0x0110), a.Registers()[ads131m.RegMode])

	// shadow restored to defaults after a reset
	err = a.WriteRegister(ads131m.RegCfg, 0x0700)
	require.Nil(t, err)
	err = a.Reset()
	require.Nil(t, err)
	assert.Equal(t, uint16(0x0600), a.Registers()[ads131m.RegCfg])
	assert.Equal(t, uint16(0x0600), d.Registers()[ads131m.RegCfg])
}

func TestResetNotAcknowledged(t *testing.T) {
	a, d := newADC(t, []mockup.ADS131MOption{mockup.WithUnresponsiveReset()})

	err := a.Reset()
	assert.True(t, errors.Is(err, ads131m.ErrResetNotAcknowledged))
	assert.Equal(t, ads131m.Unconfigured, a.State())
	assert.Equal(t, 1, d.Resets())

	_, err = a.ReadFrame()
	assert.Equal(t, ads131m.ErrNotConfigured, err)

	err = a.Startup()
	assert.True(t, errors.Is(err, ads131m.ErrResetNotAcknowledged))
}

func TestReadFrame(t *testing.T) {
	a, d := newADC(t, nil)

	_, err := a.ReadFrame()
	assert.Equal(t, ads131m.ErrNotConfigured, err)

	require.Nil(t, a.Startup())
	codes := []int32{0x7fffff, -0x800000, 1, 0}
	d.SetCodes(codes...)

	s, err := a.ReadFrame()
	require.Nil(t, err)
	assert.True(t, s.CRCValid)
	assert.Equal(t, codes, s.Codes)
	assert.False(t, s.Status.Reset())
	assert.False(t, s.Status.Lock())
	assert.Equal(t, 1, s.Status.WordLength())
	for ch := 0; ch < 4; ch++ {
		assert.True(t, s.Status.DRDY(ch))
	}

	vv := a.Volts(s)
	require.Len(t, vv, 4)
	assert.InDelta(t, 0.3, vv[0], 1e-6)
	assert.InDelta(t, -0.3, vv[1], 1e-12)
	assert.InDelta(t, a.LSBWeight(), vv[2], 1e-18)
	assert.Equal(t, 0.0, vv[3])
}

func TestReadFrameCRC(t *testing.T) {
	a, d := newADC(t, nil)
	require.Nil(t, a.Reset())
	d.SetCodes(100, 200, 300, 400)

	d.CorruptCRC(1)
	s, err := a.ReadFrame()
	assert.Nil(t, err)
	assert.False(t, s.CRCValid)

	s, err = a.ReadFrame()
	assert.Nil(t, err)
	assert.True(t, s.CRCValid)
	assert.Equal(t, []int32{100, 200, 300, 400}, s.Codes)
	assert.Equal(t, ads131m.Configured, a.State())
}

func TestReadFrameUnexpectedReset(t *testing.T) {
	a, d := newADC(t, nil)
	require.Nil(t, a.Reset())

	d.Glitch()
	_, err := a.ReadFrame()
	assert.Equal(t, ads131m.ErrUnexpectedReset, err)
	assert.Equal(t, ads131m.Unconfigured, a.State())

	_, err = a.ReadFrame()
	assert.Equal(t, ads131m.ErrNotConfigured, err)

	require.Nil(t, a.Reset())
	s, err := a.ReadFrame()
	assert.Nil(t, err)
	assert.True(t, s.CRCValid)
	assert.False(t, s.Status.Reset())
}

func TestReadFrameDrain(t *testing.T) {
	a, d := newADC(t, nil)
	require.Nil(t, a.Reset())

	d.InjectResidual()
	s, err := a.ReadFrame()
	assert.Nil(t, err)
	assert.True(t, s.CRCValid)
	assert.Greater(t, d.Drains(), 0)
	assert.Equal(t, d.Frames(), d.Selects())
}

func TestCRCTypeANSI(t *testing.T) {
	a, d := newADC(t, nil, ads131m.WithCRCType(ads131m.CRCANSI))
	require.Nil(t, a.Reset())
	assert.Equal(t, uint16(0x0910), d.Registers()[ads131m.RegMode])
	assert.Equal(t, ads131m.CRCANSI, a.Registers().CRCType())

	s, err := a.ReadFrame()
	require.Nil(t, err)
	assert.True(t, s.CRCValid)
	assert.Equal(t, ads131m.CRCANSI, s.Status.CRCType())
}

func TestWriteRegister(t *testing.T) {
	a, d := newADC(t, nil)
	require.Nil(t, a.Reset())

	err := a.WriteRegister(ads131m.RegGain1, 0x1234)
	require.Nil(t, err)
	assert.Equal(t, uint16(0x1234), d.Registers()[ads131m.RegGain1])
	assert.Equal(t, uint16(0x1234), a.Registers()[ads131m.RegGain1])

	err = a.WriteRegister(ads131m.NumRegisters, 0x1234)
	assert.True(t, errors.Is(err, ads131m.ErrInvalidRegister))

	// a corrupted acknowledge leaves the shadow untouched
	d.CorruptCRC(2)
	err = a.WriteRegister(ads131m.RegThrshldMSB, 0x0042)
	assert.True(t, errors.Is(err, ads131m.ErrCRC))
	assert.Equal(t, uint16(0), a.Registers()[ads131m.RegThrshldMSB])
}

func TestReadRegister(t *testing.T) {
	a, _ := newADC(t, nil)
	require.Nil(t, a.Reset())

	v, err := a.ReadRegister(ads131m.RegID)
	require.Nil(t, err)
	assert.Equal(t, uint16(0x2400), v)

	v, err = a.ReadRegister(ads131m.ChGCalMSB(2))
	require.Nil(t, err)
	assert.Equal(t, uint16(0x8000), v)

	_, err = a.ReadRegister(0x40)
	assert.True(t, errors.Is(err, ads131m.ErrInvalidRegister))
}

func TestStartup(t *testing.T) {
	a, d := newADC(t, nil,
		ads131m.WithOSR(ads131m.OSR4096),
		ads131m.WithPowerMode(ads131m.PowerLow))

	err := a.Startup()
	require.Nil(t, err)
	assert.Equal(t, ads131m.Configured, a.State())
	r := d.Registers()
	assert.Equal(t, uint16(0x3333), r[ads131m.RegGain1])
	assert.Equal(t, uint16(0x0000), r[ads131m.RegGain2])
	assert.Equal(t, uint16(0x0f15), r[ads131m.RegClock])
	assert.Equal(t, r, a.Registers())

	a, d = newADC(t,
		[]mockup.ADS131MOption{mockup.WithChannels(8)},
		ads131m.WithChannels(8),
		ads131m.WithGain(128))
	err = a.Startup()
	require.Nil(t, err)
	r = d.Registers()
	assert.Equal(t, uint16(0x7777), r[ads131m.RegGain1])
	assert.Equal(t, uint16(0x7777), r[ads131m.RegGain2])
	assert.Equal(t, uint16(0xff0e), r[ads131m.RegClock])

	// device with a different frame
	a, _ = newADC(t,
		[]mockup.ADS131MOption{mockup.WithChannels(8)},
		ads131m.WithChannels(4))
	err = a.Startup()
	assert.Equal(t, mockup.ErrFrameSize, err)
}

func TestResetRestoresStartup(t *testing.T) {
	a, d := newADC(t, nil,
		ads131m.WithOSR(ads131m.OSR4096),
		ads131m.WithPowerMode(ads131m.PowerLow))

	// before Startup only the MODE is restored
	require.Nil(t, a.Reset())
	assert.Equal(t, uint16(0x0000), d.Registers()[ads131m.RegGain1])
	assert.Equal(t, uint16(0x0f0e), d.Registers()[ads131m.RegClock])

	require.Nil(t, a.Startup())
	d.Glitch()
	_, err := a.ReadFrame()
	require.Equal(t, ads131m.ErrUnexpectedReset, err)
	assert.Equal(t, uint16(0x0000), d.Registers()[ads131m.RegGain1])

	require.Nil(t, a.Reset())
	r := d.Registers()
	assert.Equal(t, uint16(0x3333), r[ads131m.RegGain1])
	assert.Equal(t, uint16(0x0f15), r[ads131m.RegClock])
	assert.Equal(t, uint16(0x0110), r[ads131m.RegMode])
	assert.Equal(t, r, a.Registers())

	d.SetCodes(0x7fffff, 0, 0, 0)
	s, err := a.ReadFrame()
	require.Nil(t, err)
	assert.InDelta(t, 0.3, a.Volts(s)[0], 1e-6)

	// and likewise after a RESET command
	require.Nil(t, a.SoftReset())
	assert.Equal(t, uint16(0x3333), d.Registers()[ads131m.RegGain1])
}

func TestVoltsFollowGain(t *testing.T) {
	a, d := newADC(t, nil)
	require.Nil(t, a.Startup())
	d.SetCodes(0x7fffff, 0x7fffff, 0x7fffff, 0x7fffff)

	// channel 0 at gain 1, channel 1 at gain 2, the rest at 8
	require.Nil(t, a.WriteRegister(ads131m.RegGain1, 0x3310))
	s, err := a.ReadFrame()
	require.Nil(t, err)
	vv := a.Volts(s)
	assert.InDelta(t, 2.4, vv[0], 1e-6)
	assert.InDelta(t, 1.2, vv[1], 1e-6)
	assert.InDelta(t, 0.3, vv[2], 1e-6)
	assert.InDelta(t, 0.3, vv[3], 1e-6)
}

func TestSoftReset(t *testing.T) {
	a, d := newADC(t, nil)
	require.Nil(t, a.Reset())
	require.Nil(t, a.WriteRegister(ads131m.RegCfg, 0x0700))

	err := a.SoftReset()
	require.Nil(t, err)
	assert.Equal(t, 2, d.Resets())
	assert.Equal(t, ads131m.Configured, a.State())
	assert.Equal(t, uint16(0x0600), d.Registers()[ads131m.RegCfg])
	assert.Equal(t, uint16(0x0110), d.Registers()[ads131m.RegMode])
}

func TestSync(t *testing.T) {
	a, d := newADC(t, nil)
	require.Nil(t, a.Reset())
	require.Nil(t, a.WriteRegister(ads131m.RegCfg, 0x0700))

	err := a.Sync()
	require.Nil(t, err)
	assert.Equal(t, 1, d.Syncs())
	assert.Equal(t, 1, d.Resets())
	// configuration retained
	assert.Equal(t, ads131m.Configured, a.State())
	assert.Equal(t, uint16(0x0700), d.Registers()[ads131m.RegCfg])
	_, err = a.ReadFrame()
	assert.Nil(t, err)
}

func TestLock(t *testing.T) {
	a, d := newADC(t, nil)
	require.Nil(t, a.Reset())

	require.Nil(t, a.Lock())
	assert.True(t, d.Locked())
	s, err := a.ReadFrame()
	require.Nil(t, err)
	assert.True(t, s.Status.Lock())

	assert.Equal(t, ads131m.ErrLocked, a.WriteRegister(ads131m.RegCfg, 0x0700))
	assert.Equal(t, ads131m.ErrLocked, a.Standby())
	assert.Equal(t, ads131m.ErrLocked, a.SoftReset())
	v, err := a.ReadRegister(ads131m.RegCfg)
	assert.Nil(t, err)
	assert.Equal(t, uint16(0x0600), v)

	require.Nil(t, a.Unlock())
	assert.False(t, d.Locked())
	assert.Nil(t, a.WriteRegister(ads131m.RegCfg, 0x0700))

	// a reset unlocks
	require.Nil(t, a.Lock())
	require.Nil(t, a.Reset())
	assert.False(t, d.Locked())
	assert.Nil(t, a.WriteRegister(ads131m.RegCfg, 0x0700))
}

func TestStandby(t *testing.T) {
	a, d := newADC(t, nil)
	require.Nil(t, a.Reset())
	d.SetCodes(1, 2, 3, 4)

	require.Nil(t, a.Standby())
	assert.True(t, d.Standby())
	s, err := a.ReadFrame()
	require.Nil(t, err)
	assert.Equal(t, []int32{0, 0, 0, 0}, s.Codes)
	assert.False(t, s.Status.DRDY(0))

	require.Nil(t, a.Wakeup())
	assert.False(t, d.Standby())
	s, err = a.ReadFrame()
	require.Nil(t, err)
	assert.Equal(t, []int32{1, 2, 3, 4}, s.Codes)
}

// scripted is a Conn returning a fixed sequence of response words.
type scripted struct {
	channels  int
	responses []uint16
}

func (s *scripted) Exchange(tx, rx []byte) error {
	var resp uint16
	if len(s.responses) > 0 {
		resp = s.responses[0]
		s.responses = s.responses[1:]
	}
	ads131m.EncodeFrame(rx, resp, make([]int32, s.channels), ads131m.CRCCCITT)
	return nil
}

type nopLine struct{}

func (nopLine) Sync() error  { return nil }
func (nopLine) Reset() error { return nil }

func TestStartupChannelCount(t *testing.T) {
	c := scripted{
		channels: 4,
		responses: []uint16{
			ads131m.ResetAck(4),
			0, ads131m.WriteAck(ads131m.RegMode, 1),
			0, 0x2200, // ID of a two channel device
		},
	}
	a, err := ads131m.New(&c, nopLine{})
	require.Nil(t, err)
	err = a.Startup()
	assert.True(t, errors.Is(err, ads131m.ErrChannelCount), err)
}
