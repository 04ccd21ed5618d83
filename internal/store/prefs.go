package store

import (
	"fmt"
	"sync"

	"github.com/vocalize/tts-gateway/internal/tts"
)

// Preferences holds per-chat voice and speed choices in process memory.
// Entries live for the process lifetime; loss on restart is accepted.
// The store is injected into the handler layers so a persistent backend can
// replace it without touching handler logic.
type Preferences struct {
	mu     sync.RWMutex
	voices map[int64]string
	speeds map[int64]float64
}

// NewPreferences creates an empty preference store
func NewPreferences() *Preferences {
	return &Preferences{
		voices: make(map[int64]string),
		speeds: make(map[int64]float64),
	}
}

// Voice returns the stored voice for chatID, or the system default
func (p *Preferences) Voice(chatID int64) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if voice, ok := p.voices[chatID]; ok {
		return voice
	}
	return tts.DefaultVoice
}

// Speed returns the stored speed for chatID, or the system default
func (p *Preferences) Speed(chatID int64) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if speed, ok := p.speeds[chatID]; ok {
		return speed
	}
	return tts.DefaultSpeed
}

// SetVoice stores a voice preference. Values outside the reference table are
// rejected and leave the stored value unchanged.
func (p *Preferences) SetVoice(chatID int64, voice string) error {
	if !tts.ValidVoice(voice) {
		return fmt.Errorf("invalid voice %q", voice)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.voices[chatID] = voice
	return nil
}

// SetSpeed stores a speed preference. Values outside the reference table are
// rejected and leave the stored value unchanged.
func (p *Preferences) SetSpeed(chatID int64, speed float64) error {
	if !tts.ValidSpeed(speed) {
		return fmt.Errorf("invalid speed %v", speed)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.speeds[chatID] = speed
	return nil
}
