// device_speaker.go - PC speaker behind system control port B (0x61)
//
// Bit 0 gates PIT channel 2, bit 1 connects its output to the speaker.
// The tone is rendered by an audio backend as a square wave at the
// channel 2 frequency.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"math"
	"sync/atomic"
)

const (
	SPEAKER_PORT = 0x61

	speakerGate   = 0x01
	speakerEnable = 0x02
	speakerOut2   = 0x20 // read: PIT channel 2 output

	SPEAKER_SAMPLE_RATE = 44100
	speakerAmplitude    = 0.25

	// How many loop iterations between tone refreshes
	speakerRefreshSteps = 1024
)

// ToneSource produces mono float32 samples for an audio player.
type ToneSource interface {
	NextSample() float32
}

// squareWave is read from the audio goroutine without locks.
type squareWave struct {
	freqBits   atomic.Uint64 // float64 bits, Hz
	on         atomic.Bool
	phase      float64
	sampleRate float64
}

func (w *squareWave) set(freq float64, on bool) {
	w.freqBits.Store(math.Float64bits(freq))
	w.on.Store(on && freq > 0)
}

func (w *squareWave) NextSample() float32 {
	if !w.on.Load() {
		return 0
	}
	freq := math.Float64frombits(w.freqBits.Load())
	w.phase += freq / w.sampleRate
	if w.phase >= 1 {
		w.phase -= math.Floor(w.phase)
	}
	if w.phase < 0.5 {
		return speakerAmplitude
	}
	return -speakerAmplitude
}

// SpeakerPlayer is the audio backend contract (oto or headless).
type SpeakerPlayer interface {
	SetupPlayer(src ToneSource)
	Start()
	Close()
}

// Speaker is the port 0x61 device.
type Speaker struct {
	control byte
	wave    squareWave
	player  SpeakerPlayer
	pit     *DeviceHandle
	steps   int

	lastFreq float64
	lastOn   bool
	// Changes counts tone changes, for the status window and tests.
	Changes int
}

func NewSpeaker(player SpeakerPlayer) *Speaker {
	s := &Speaker{player: player}
	s.wave.sampleRate = SPEAKER_SAMPLE_RATE
	return s
}

func (s *Speaker) Name() string { return "speaker" }

func (s *Speaker) Init(sys *System) error {
	s.pit = sys.Device("pit")
	if s.pit == nil {
		logWarn(modAudio, "speaker has no pit to follow")
	}
	if s.player != nil {
		s.player.SetupPlayer(&s.wave)
		s.player.Start()
	}
	return nil
}

func (s *Speaker) withPIT(fn func(p *PIT)) {
	if s.pit == nil {
		return
	}
	s.pit.With(func(dev Device) { fn(dev.(*PIT)) })
}

func (s *Speaker) Step() {
	s.steps++
	if s.steps < speakerRefreshSteps {
		return
	}
	s.steps = 0
	s.refresh()
}

// refresh pushes the current channel 2 tone to the wave generator
func (s *Speaker) refresh() {
	var freq float64
	s.withPIT(func(p *PIT) { freq = p.Frequency(2) })
	on := s.control&(speakerGate|speakerEnable) == speakerGate|speakerEnable
	if freq == s.lastFreq && on == s.lastOn {
		return
	}
	s.lastFreq, s.lastOn = freq, on
	s.Changes++
	s.wave.set(freq, on)
	logDebug(modAudio, "speaker tone", "hz", freq, "on", on)
}

func (s *Speaker) HandlePort(req PortRequest) (uint16, bool) {
	switch req.Key() {
	case OutB(SPEAKER_PORT):
		s.control = byte(req.Value)
		gate := s.control&speakerGate != 0
		s.withPIT(func(p *PIT) { p.SetGate(2, gate) })
		s.refresh()
		return 0, true
	case InB(SPEAKER_PORT):
		v := s.control &^ speakerOut2
		s.withPIT(func(p *PIT) {
			if p.Output(2) {
				v |= speakerOut2
			}
		})
		return uint16(v), true
	}
	return 0, false
}

// Control returns the last value written to port 0x61.
func (s *Speaker) Control() byte { return s.control }

// Tone returns the frequency and on state last sent to the backend.
func (s *Speaker) Tone() (float64, bool) {
	return s.lastFreq, s.lastOn
}

func (s *Speaker) Close() {
	if s.player != nil {
		s.player.Close()
	}
}
