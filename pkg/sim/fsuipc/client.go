// Package fsuipc reads AI traffic and the user aircraft through the FSUIPC
// inter-process link.
package fsuipc

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"trafficviewer/pkg/sim"
)

// LibraryVersion is announced to the server on connect.
const LibraryVersion uint32 = 2000

// Offsets into the server state table.
const (
	offsetVersion     = 0x3304
	offsetSimVersion  = 0x3308
	offsetLibVersion  = 0x330A
	offsetTransponder = 0x0354
	offsetOwnState    = 0x6010 // lat, lon, alt, magvar, gs, heading
	ownStateSize      = 0x30

	offsetGroundCount = 0xE004
	offsetGroundPrefs = 0xE068
	offsetGroundSlots = 0xE080
	offsetAirCount    = 0xF004
	offsetAirPrefs    = 0xF068
	offsetAirSlots    = 0xF080

	// SlotSize is the size of one traffic slot.
	SlotSize = 40
	// MaxSlots is the number of slots per traffic table.
	MaxSlots = 96
)

// simVersionMagic marks a valid simulator version word.
const simVersionMagic = 0xFADE

const (
	feetPerMetre        = 3.28084
	knotsPerMetreSecond = 1.943844
)

// transport moves one request batch to the server and returns its answer.
type transport interface {
	open() error
	exchange(req []byte) ([]byte, error)
	close() error
}

// Options configures a Client.
type Options struct {
	// RequiredSim rejects other simulators when non-zero. See SimulatorName.
	RequiredSim uint32
}

// Client implements sim.Source over FSUIPC.
type Client struct {
	t      transport
	opts   Options
	logger *slog.Logger

	mu    sync.Mutex
	b     batch
	open  bool
	info  sim.VersionInfo
	slots []byte
}

var _ sim.Source = (*Client)(nil)

func newClient(t transport, opts Options) *Client {
	return &Client{
		t:      t,
		opts:   opts,
		logger: slog.With("component", "fsuipc"),
		slots:  make([]byte, MaxSlots*SlotSize),
	}
}

// Connect opens the link, validates the server and applies traffic table preferences.
func (c *Client) Connect(ctx context.Context) (sim.VersionInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open {
		return c.info, &sim.LinkError{Code: sim.CodeOpen}
	}
	if err := ctx.Err(); err != nil {
		return sim.VersionInfo{}, err
	}
	if err := c.t.open(); err != nil {
		return sim.VersionInfo{}, err
	}

	var version, simVersion [4]byte
	lib := binary.LittleEndian.AppendUint16(nil, uint16(LibraryVersion))
	err := firstErr(
		c.b.read(offsetVersion, version[:]),
		c.b.read(offsetSimVersion, simVersion[:]),
		c.b.write(offsetLibVersion, lib),
	)
	if err == nil {
		err = c.process()
	}
	if err != nil {
		c.abort()
		return sim.VersionInfo{}, err
	}

	v := binary.LittleEndian.Uint32(version[:])
	fs := binary.LittleEndian.Uint32(simVersion[:])
	if v&0xFFFF0000 == 0 || fs>>16 != simVersionMagic {
		c.abort()
		return sim.VersionInfo{}, &sim.LinkError{Code: sim.CodeVersion}
	}
	fs &= 0xFFFF
	if c.opts.RequiredSim != 0 && fs != c.opts.RequiredSim {
		c.abort()
		return sim.VersionInfo{}, &sim.LinkError{Code: sim.CodeWrongSimVersion}
	}

	c.open = true
	if err := c.setPreferences(offsetGroundPrefs, offsetAirPrefs); err != nil {
		c.abort()
		c.open = false
		return sim.VersionInfo{}, fmt.Errorf("set traffic preferences: %w", err)
	}

	c.info = sim.VersionInfo{
		Link:      VersionString(v),
		Simulator: SimulatorName(fs),
		Library:   LibraryVersion,
	}
	c.logger.Info("Linked to simulator", "simulator", c.info.Simulator, "fsuipc", c.info.Link)
	return c.info, nil
}

// Aircraft reads the ground or airborne traffic table. Empty slots are skipped.
func (c *Client) Aircraft(ctx context.Context, onGround bool) ([]sim.AircraftSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(ctx); err != nil {
		return nil, err
	}

	prefs, countAt, slotsAt := uint32(offsetAirPrefs), uint32(offsetAirCount), uint32(offsetAirSlots)
	if onGround {
		prefs, countAt, slotsAt = offsetGroundPrefs, offsetGroundCount, offsetGroundSlots
	}
	if err := c.setPreferences(prefs); err != nil {
		return nil, err
	}

	var count [2]byte
	if err := c.b.read(countAt, count[:]); err != nil {
		return nil, err
	}
	if err := c.process(); err != nil {
		return nil, err
	}
	n := int(binary.LittleEndian.Uint16(count[:]))
	if n > MaxSlots {
		c.logger.Warn("Traffic count out of range", "count", n, "ground", onGround)
		n = MaxSlots
	}
	c.logger.Debug("Traffic table", "count", n, "ground", onGround)
	if n == 0 {
		return nil, nil
	}

	buf := c.slots[:n*SlotSize]
	if err := c.b.read(slotsAt, buf); err != nil {
		return nil, err
	}
	if err := c.process(); err != nil {
		return nil, err
	}

	out := make([]sim.AircraftSnapshot, 0, n)
	for i := 0; i < n; i++ {
		a := DecodeSlot(buf[i*SlotSize : (i+1)*SlotSize])
		if a.ID == 0 {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// OwnAircraft reads the user aircraft position and transponder.
func (c *Client) OwnAircraft(ctx context.Context) (sim.OwnAircraft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ready(ctx); err != nil {
		return sim.OwnAircraft{}, err
	}

	var state [ownStateSize]byte
	var squawk [2]byte
	err := firstErr(
		c.b.read(offsetOwnState, state[:]),
		c.b.read(offsetTransponder, squawk[:]),
	)
	if err == nil {
		err = c.process()
	}
	if err != nil {
		return sim.OwnAircraft{}, err
	}

	f64 := func(off int) float64 {
		return math.Float64frombits(binary.LittleEndian.Uint64(state[off:]))
	}
	return sim.OwnAircraft{
		Lat:         f64(0x00),
		Lon:         f64(0x08),
		Alt:         f64(0x10) * feetPerMetre,
		GroundSpeed: f64(0x20) * knotsPerMetreSecond,
		TrueHeading: f64(0x28) * 180 / math.Pi,
		Transponder: SquawkString(binary.LittleEndian.Uint16(squawk[:])),
	}, nil
}

// Close releases the link. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil
	}
	c.open = false
	c.b.reset()
	return c.t.close()
}

func (c *Client) ready(ctx context.Context) error {
	c.b.reset()
	if !c.open {
		return &sim.LinkError{Code: sim.CodeNotOpen}
	}
	return ctx.Err()
}

// setPreferences zeroes both range bytes and the id option of each table,
// so the tables list every aircraft by ATC callsign.
func (c *Client) setPreferences(bases ...uint32) error {
	zero := []byte{0}
	for _, base := range bases {
		for i := uint32(0); i < 3; i++ {
			if err := c.b.write(base+i, zero); err != nil {
				return err
			}
		}
	}
	return c.process()
}

func (c *Client) process() error {
	defer c.b.reset()
	if c.b.empty() {
		return &sim.LinkError{Code: sim.CodeNoData}
	}
	resp, err := c.t.exchange(c.b.bytes())
	if err != nil {
		return err
	}
	return c.b.complete(resp)
}

func (c *Client) abort() {
	c.b.reset()
	if err := c.t.close(); err != nil {
		c.logger.Debug("Close after failed connect", "error", err)
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// DecodeSlot decodes one little-endian traffic slot.
func DecodeSlot(b []byte) sim.AircraftSnapshot {
	le := binary.LittleEndian
	a := sim.AircraftSnapshot{
		ID:            le.Uint32(b[0:]),
		Lat:           math.Float32frombits(le.Uint32(b[4:])),
		Lon:           math.Float32frombits(le.Uint32(b[8:])),
		Alt:           math.Float32frombits(le.Uint32(b[12:])),
		Heading:       le.Uint16(b[16:]),
		GroundSpeed:   le.Uint16(b[18:]),
		VerticalSpeed: int16(le.Uint16(b[20:])),
		State:         sim.AircraftState(b[37]),
		Com1:          le.Uint16(b[38:]),
	}
	copy(a.Callsign[:], b[22:37])
	return a
}

// EncodeSlot is the inverse of DecodeSlot.
func EncodeSlot(a sim.AircraftSnapshot) []byte {
	le := binary.LittleEndian
	b := make([]byte, SlotSize)
	le.PutUint32(b[0:], a.ID)
	le.PutUint32(b[4:], math.Float32bits(a.Lat))
	le.PutUint32(b[8:], math.Float32bits(a.Lon))
	le.PutUint32(b[12:], math.Float32bits(a.Alt))
	le.PutUint16(b[16:], a.Heading)
	le.PutUint16(b[18:], a.GroundSpeed)
	le.PutUint16(b[20:], uint16(a.VerticalSpeed))
	copy(b[22:37], a.Callsign[:])
	b[37] = byte(a.State)
	le.PutUint16(b[38:], a.Com1)
	return b
}

// SquawkString renders a BCD transponder word as four digits.
func SquawkString(bcd uint16) string {
	return fmt.Sprintf("%04X", bcd)
}

// VersionString renders the packed FSUIPC version, e.g. 0x74000005 as "7.400e".
func VersionString(v uint32) string {
	digit := func(shift uint) byte { return '0' + byte(v>>shift&0x0F) }
	s := fmt.Sprintf("%c.%c%c%c", digit(28), digit(24), digit(20), digit(16))
	if v&0xFFFF != 0 {
		s += string(rune('a' + v&0xFF - 1))
	}
	return s
}

var simulatorNames = map[uint32]string{
	1:  "Microsoft Flight Simulator 98",
	2:  "Microsoft Flight Simulator 2000",
	3:  "Microsoft Combat Flight Simulator 2",
	4:  "Microsoft Combat Flight Simulator",
	5:  "Fly",
	6:  "Microsoft Flight Simulator 2002",
	7:  "Microsoft Flight Simulator 2004",
	8:  "Microsoft Flight Simulator X",
	9:  "Microsoft ESP",
	10: "Prepar3D",
	11: "Microsoft Flight Simulator X x64",
	12: "Prepar3D x64",
	13: "Microsoft Flight Simulator 2020",
}

// SimulatorName names a simulator version code.
func SimulatorName(code uint32) string {
	if name, ok := simulatorNames[code]; ok {
		return name
	}
	return fmt.Sprintf("Unknown simulator (%d)", code)
}
