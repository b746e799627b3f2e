package colourizer

import (
	"math"
	"reflect"
	"sync"
	"testing"
)

func processPlanar(p *Processor, bufs [][]float32, block int) {
	frames := len(bufs[0])
	views := make([][]float32, len(bufs))
	for start := 0; start < frames; start += block {
		end := start + block
		if end > frames {
			end = frames
		}
		for c := range bufs {
			views[c] = bufs[c][start:end]
		}
		p.ProcessBlock(views)
	}
}

func TestProcessorPassesA4AtUnity(t *testing.T) {
	const sr = 44100.0
	params := NewDefaultParams()
	params.Scale = []string{"A4"}
	p := NewProcessor(sr, 2, params)

	x := makeSine(t, sr, 440, 0.5, 4*int(sr))
	bufs := [][]float32{toFloat32(x), toFloat32(x)}
	processPlanar(p, bufs, 512)

	for c := range bufs {
		tail := toFloat64(bufs[c][len(x)-int(sr):])
		level := toneAmplitude(t, tail, 440, sr)
		if math.Abs(level-0.5) > 0.01 {
			t.Fatalf("channel %d: expected A4 amplitude near 0.5, got %g", c, level)
		}
	}
}

func TestProcessorRejectsA3WhenOnlyA4Enabled(t *testing.T) {
	const sr = 44100.0
	params := NewDefaultParams()
	params.Scale = []string{"A4"}
	p := NewProcessor(sr, 1, params)

	x := makeSine(t, sr, 220, 0.5, 4*int(sr))
	bufs := [][]float32{toFloat32(x)}
	processPlanar(p, bufs, 256)

	tail := toFloat64(bufs[0][len(x)-int(sr):])
	if level := toneAmplitude(t, tail, 220, sr); level > 0.005 {
		t.Fatalf("expected 220 Hz to be attenuated by at least 40 dB, got amplitude %g", level)
	}
}

func TestProcessorZeroInputGivesZero(t *testing.T) {
	params := NewDefaultParams()
	params.Scale = mustScale(t, "chromatic")
	p := NewProcessor(48000, 2, params)
	bufs := [][]float32{make([]float32, 4096), make([]float32, 4096)}
	processPlanar(p, bufs, 128)
	for c := range bufs {
		for i, v := range bufs[c] {
			if v != 0 {
				t.Fatalf("channel %d sample %d: expected exact zero, got %g", c, i, v)
			}
		}
	}
}

func TestProcessorEmptyScaleGivesSilence(t *testing.T) {
	params := NewDefaultParams()
	params.Scale = nil
	p := NewProcessor(48000, 1, params)
	bufs := [][]float32{toFloat32(makeNoise(2048, 0.5, 9))}
	p.ProcessBlock(bufs)
	for i, v := range bufs[0] {
		if v != 0 {
			t.Fatalf("sample %d: expected silence, got %g", i, v)
		}
	}
}

func TestProcessorDryMixPassesInput(t *testing.T) {
	params := NewDefaultParams()
	params.DryWet = 0
	p := NewProcessor(44100, 2, params)
	x := toFloat32(makeNoise(2048, 0.5, 10))
	bufs := [][]float32{append([]float32(nil), x...), append([]float32(nil), x...)}
	p.ProcessBlock(bufs)
	for c := range bufs {
		if !reflect.DeepEqual(bufs[c], x) {
			t.Fatalf("channel %d: expected dry signal unchanged", c)
		}
	}
}

func TestProcessorMonoModeSumsChannels(t *testing.T) {
	params := NewDefaultParams()
	params.Mode = ModeMono
	params.Scale = mustScale(t, "chromatic")
	p := NewProcessor(44100, 2, params)

	x := makeNoise(2048, 0.5, 11)
	neg := make([]float64, len(x))
	for i, v := range x {
		neg[i] = -v
	}
	bufs := [][]float32{toFloat32(x), toFloat32(neg)}
	p.ProcessBlock(bufs)
	for c := range bufs {
		for i, v := range bufs[c] {
			if v != 0 {
				t.Fatalf("channel %d sample %d: expected cancelled mono sum, got %g", c, i, v)
			}
		}
	}

	bufs = [][]float32{toFloat32(x), toFloat32(x)}
	p.ProcessBlock(bufs)
	if !reflect.DeepEqual(bufs[0], bufs[1]) {
		t.Fatal("mono mode must write the same signal to every channel")
	}
}

func TestProcessorInterleavedMatchesPlanar(t *testing.T) {
	params := NewDefaultParams()
	a := NewProcessor(48000, 2, params)
	b := NewProcessor(48000, 2, params)

	left := toFloat32(makeNoise(1024, 0.5, 12))
	right := toFloat32(makeNoise(1024, 0.5, 13))
	inter := make([]float32, 0, 2*len(left))
	for i := range left {
		inter = append(inter, left[i], right[i])
	}

	a.ProcessBlock([][]float32{left, right})
	b.ProcessInterleaved(inter, 2)
	for i := range left {
		if inter[2*i] != left[i] || inter[2*i+1] != right[i] {
			t.Fatalf("frame %d: interleaved and planar differ", i)
		}
	}
}

func TestProcessorAdoptsPublishedSettings(t *testing.T) {
	p := NewProcessor(44100, 2, nil)
	p.Controls().SetScale([]string{"C4"})
	p.Controls().SetQ(20)
	if reflect.DeepEqual(p.Bank().ActiveNotes(), []Note{MustParseNote("C4")}) {
		t.Fatal("settings must not reach the bank before the next block")
	}
	p.ProcessBlock([][]float32{make([]float32, 16), make([]float32, 16)})
	if !reflect.DeepEqual(p.Bank().ActiveNotes(), []Note{MustParseNote("C4")}) {
		t.Fatalf("expected C4 active, got %v", p.Bank().ActiveNotes())
	}
	if p.Bank().Q() != 20 {
		t.Fatalf("expected q 20, got %g", p.Bank().Q())
	}
}

func TestProcessorInputGainIsSmoothed(t *testing.T) {
	const sr = 48000.0
	p := NewProcessor(sr, 1, nil)
	p.Controls().SetInputGain(0.5)

	buf := [][]float32{make([]float32, int(sr))}
	p.ProcessBlock(buf[:1])
	if math.Abs(p.gain-0.5) > 1e-4 {
		t.Fatalf("expected gain to settle at 0.5, got %g", p.gain)
	}

	q := NewProcessor(sr, 1, nil)
	q.Controls().SetInputGain(0.5)
	q.ProcessBlock([][]float32{make([]float32, 1)})
	if q.gain < 0.99 {
		t.Fatalf("expected gain to ramp, jumped to %g after one sample", q.gain)
	}
}

func TestProcessorSampleRateChange(t *testing.T) {
	params := NewDefaultParams()
	params.Scale = mustScale(t, "chromatic")
	p := NewProcessor(44100, 2, params)
	bufs := [][]float32{toFloat32(makeNoise(4096, 0.5, 14)), toFloat32(makeNoise(4096, 0.5, 15))}
	p.ProcessBlock(bufs)

	p.SetSampleRate(96000)
	if p.SampleRate() != 96000 || p.Bank().SampleRate() != 96000 {
		t.Fatalf("expected 96000, got %g / %g", p.SampleRate(), p.Bank().SampleRate())
	}
	bufs = [][]float32{toFloat32(makeNoise(96000, 0.5, 16)), toFloat32(makeNoise(96000, 0.5, 17))}
	processPlanar(p, bufs, 512)
	for c := range bufs {
		y := toFloat64(bufs[c])
		if !allFinite(y) || peakAbs(y) > 100 {
			t.Fatalf("channel %d unstable after sample rate change: peak %g", c, peakAbs(y))
		}
	}
}

func TestProcessorGrowsChannels(t *testing.T) {
	p := NewProcessor(44100, 2, nil)
	p.ProcessBlock([][]float32{make([]float32, 8), make([]float32, 8), make([]float32, 8)})
	if p.Channels() != 3 || p.Bank().Channels() != 3 {
		t.Fatalf("expected 3 channels, got %d / %d", p.Channels(), p.Bank().Channels())
	}
}

func TestProcessorProcessBlockDoesNotAllocate(t *testing.T) {
	p := NewProcessor(44100, 2, nil)
	a := p.Controls().Snapshot()
	p.Controls().SetScale([]string{"C4", "E4", "G4"})
	b := p.Controls().Snapshot()
	bufs := [][]float32{make([]float32, 256), make([]float32, 256)}
	for c := range bufs {
		for i := range bufs[c] {
			bufs[c][i] = 0.1
		}
	}

	flip := false
	allocs := testing.AllocsPerRun(50, func() {
		if flip {
			p.controls.settings.Store(a)
		} else {
			p.controls.settings.Store(b)
		}
		flip = !flip
		p.ProcessBlock(bufs)
	})
	if allocs != 0 {
		t.Fatalf("expected no allocations per block, got %g", allocs)
	}
}

func TestProcessorConcurrentControlUpdates(t *testing.T) {
	p := NewProcessor(44100, 2, nil)
	scales := [][]string{mustScale(t, "major"), {"A4"}, nil, mustScale(t, "chromatic")}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		i := 0
		for {
			select {
			case <-done:
				return
			default:
			}
			c := p.Controls()
			c.SetScale(scales[i%len(scales)])
			c.SetQ(float64(10 + i%40))
			c.SetInputGain(0.5 + 0.5*float64(i%2))
			c.SetNoteGain(NoteA4, float64(i%30))
			i++
		}
	}()

	bufs := [][]float32{make([]float32, 256), make([]float32, 256)}
	for block := 0; block < 200; block++ {
		for c := range bufs {
			copy(bufs[c], toFloat32(makeNoise(256, 0.5, int64(block*2+c))))
		}
		p.ProcessBlock(bufs)
		for c := range bufs {
			if !allFinite(toFloat64(bufs[c])) {
				t.Fatalf("block %d: non-finite output", block)
			}
		}
	}
	close(done)
	wg.Wait()
}
