package fsd

import (
	"fmt"
	"math"
)

// TransponderCode is a four-digit octal squawk code held as its decimal
// digits, so 7700 is stored as 7700.
type TransponderCode uint16

// NewTransponderCode validates that every digit of v is octal.
func NewTransponderCode(v int) (TransponderCode, error) {
	if v < 0 || v > 7777 {
		return 0, fmt.Errorf("%w: transponder code %d out of range", ErrMalformed, v)
	}
	for n := v; n > 0; n /= 10 {
		if n%10 > 7 {
			return 0, fmt.Errorf("%w: transponder code %04d has a non-octal digit", ErrMalformed, v)
		}
	}
	return TransponderCode(v), nil
}

func (c TransponderCode) String() string {
	return fmt.Sprintf("%04d", uint16(c))
}

// PBH is pitch, bank and heading in degrees plus the on-ground flag.
type PBH struct {
	Pitch    float64
	Bank     float64
	Heading  float64
	OnGround bool
}

// Pack encodes the attitude into the protocol's 32-bit word:
// pitch in bits 22-31, bank in 12-21, heading in 2-11, on-ground in bit 1.
// Pitch and bank are sent negated.
func (p PBH) Pack() uint32 {
	pitch := packAngle(-p.Pitch)
	bank := packAngle(-p.Bank)
	hdg := packAngle(p.Heading)

	v := pitch<<22 | bank<<12 | hdg<<2
	if p.OnGround {
		v |= 1 << 1
	}
	return v
}

// UnpackPBH reverses Pack. Angles come back at the wire resolution.
func UnpackPBH(v uint32) PBH {
	return PBH{
		Pitch:    -signedAngle(v >> 22),
		Bank:     -signedAngle(v >> 12),
		Heading:  float64((v>>2)&0x3FF) * 360 / 1024,
		OnGround: v&(1<<1) != 0,
	}
}

func packAngle(deg float64) uint32 {
	n := int64(math.Floor(deg * 1024 / 360))
	n %= 1024
	if n < 0 {
		n += 1024
	}
	return uint32(n)
}

// signedAngle returns the 10-bit angle in (-180, 180].
func signedAngle(bits uint32) float64 {
	deg := float64(bits&0x3FF) * 360 / 1024
	if deg > 180 {
		deg -= 360
	}
	return deg
}
