package voice

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
)

// Player renders one synthesized answer at a time. Starting a new
// playback stops the previous one; the superseded playback's done
// callback must not fire.
type Player interface {
	// Play starts playback of MP3 data and calls done exactly once
	// when playback completes naturally or fails, unless superseded.
	Play(mp3Data []byte, done func(err error)) error
	// Stop cancels the active playback without calling done.
	Stop()
	SetMuted(muted bool)
	Muted() bool
	Close() error
}

const speakerSampleRate = beep.SampleRate(44100)

var speakerInit sync.Once

// BeepPlayer plays MP3 answers through the local audio device.
type BeepPlayer struct {
	mu      sync.Mutex
	muted   bool
	current *effects.Volume
}

func NewBeepPlayer() (*BeepPlayer, error) {
	var err error
	speakerInit.Do(func() {
		err = speaker.Init(speakerSampleRate, speakerSampleRate.N(time.Second/10))
	})
	if err != nil {
		return nil, &PlaybackError{Err: fmt.Errorf("init speaker: %w", err)}
	}
	return &BeepPlayer{}, nil
}

func (p *BeepPlayer) Play(mp3Data []byte, done func(err error)) error {
	streamer, format, err := mp3.Decode(newReadCloser(mp3Data))
	if err != nil {
		return &PlaybackError{Err: fmt.Errorf("decode mp3: %w", err)}
	}

	resampled := beep.Resample(4, format.SampleRate, speakerSampleRate, streamer)

	p.mu.Lock()
	volume := &effects.Volume{
		Streamer: resampled,
		Base:     2,
		Silent:   p.muted,
	}
	p.current = volume
	p.mu.Unlock()

	// Clearing the speaker drops the previous playback along with its
	// completion callback.
	speaker.Clear()
	speaker.Play(beep.Seq(volume, beep.Callback(func() {
		_ = streamer.Close()
		if done != nil {
			done(nil)
		}
	})))
	return nil
}

func (p *BeepPlayer) Stop() {
	speaker.Clear()
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
}

func (p *BeepPlayer) SetMuted(muted bool) {
	p.mu.Lock()
	p.muted = muted
	current := p.current
	p.mu.Unlock()

	if current != nil {
		speaker.Lock()
		current.Silent = muted
		speaker.Unlock()
	}
}

func (p *BeepPlayer) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

func (p *BeepPlayer) Close() error {
	p.Stop()
	return nil
}

type readCloser struct {
	*bytes.Reader
}

func (readCloser) Close() error { return nil }

func newReadCloser(data []byte) readCloser {
	return readCloser{bytes.NewReader(data)}
}
