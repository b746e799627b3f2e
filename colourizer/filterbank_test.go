package colourizer

import (
	"math"
	"reflect"
	"testing"

	"github.com/cwbudde/algo-colourizer/dsp"
)

func TestNewFilterBankHas108Filters(t *testing.T) {
	b := NewFilterBank(44100)
	if b.NumFilters() != NumNotes || NumNotes != 108 {
		t.Fatalf("expected 108 filters, got %d", b.NumFilters())
	}
	if got := len(b.ActiveNotes()); got != 45 {
		t.Fatalf("expected the default scale to enable 45 notes, got %d", got)
	}
	if b.Channels() != 2 {
		t.Fatalf("expected 2 channels by default, got %d", b.Channels())
	}
	if b.CenterFrequency(NoteA4) != 440 {
		t.Fatalf("expected A4 center 440 Hz, got %g", b.CenterFrequency(NoteA4))
	}
}

func TestFilterBankOptions(t *testing.T) {
	b := NewFilterBank(48000, WithQ(12), WithBoostDB(24), WithChannels(3), WithScale([]string{"A4"}))
	if b.Q() != 12 || b.BoostDB() != 24 || b.Channels() != 3 {
		t.Fatalf("options not applied: q=%g boost=%g ch=%d", b.Q(), b.BoostDB(), b.Channels())
	}
	if !reflect.DeepEqual(b.ActiveNotes(), []Note{NoteA4}) {
		t.Fatalf("expected only A4 active, got %v", b.ActiveNotes())
	}
	if b.Gain(NoteA4) != 24 {
		t.Fatalf("expected A4 gain 24 dB, got %g", b.Gain(NoteA4))
	}
	want := dsp.DesignPeak(440, 48000, 12, 24)
	if b.Coefficients(NoteA4) != want {
		t.Fatalf("unexpected A4 coefficients %+v", b.Coefficients(NoteA4))
	}
}

func TestFilterBankZeroInputGivesZeroOutput(t *testing.T) {
	b := NewFilterBank(44100, WithScale(mustScale(t, "chromatic")))
	for i := 0; i < 4096; i++ {
		for ch := 0; ch < b.Channels(); ch++ {
			if y := b.ProcessSample(ch, 0); y != 0 {
				t.Fatalf("expected exact zero at sample %d, got %g", i, y)
			}
		}
	}
}

func TestFilterBankNoActiveNotesGivesZero(t *testing.T) {
	b := NewFilterBank(44100, WithScale(nil))
	x := makeNoise(4096, 0.8, 1)
	for i, v := range runBank(b, 0, x) {
		if v != 0 {
			t.Fatalf("expected zero output with no active notes, sample %d = %g", i, v)
		}
	}
}

func TestFilterBankZeroGainsGiveZero(t *testing.T) {
	b := NewFilterBank(44100, WithScale(mustScale(t, "chromatic")))
	var zero [NumNotes]float64
	b.SetGains(zero)
	if len(b.ActiveNotes()) != NumNotes {
		t.Fatalf("SetGains must keep active flags, got %d active", len(b.ActiveNotes()))
	}
	for n := MinNote; n <= MaxNote; n++ {
		if !dsp.IsIdentity(b.Coefficients(n)) {
			t.Fatalf("note %v: expected identity coefficients at 0 dB", n)
		}
	}
	x := makeNoise(4096, 0.8, 2)
	for i, v := range runBank(b, 1, x) {
		if v != 0 {
			t.Fatalf("expected zero output with 0 dB gains, sample %d = %g", i, v)
		}
	}
}

func TestFilterBankSetScaleReplaces(t *testing.T) {
	b := NewFilterBank(44100)
	b.SetScale([]string{"A4"})
	b.SetScale([]string{"C4", "E4"})
	want := []Note{MustParseNote("C4"), MustParseNote("E4")}
	if !reflect.DeepEqual(b.ActiveNotes(), want) {
		t.Fatalf("expected %v, got %v", want, b.ActiveNotes())
	}
	if b.IsActive(NoteA4) {
		t.Fatal("A4 must be inactive after replacing the scale")
	}
}

func TestFilterBankSetScaleDuplicatesAndSynonyms(t *testing.T) {
	x := makeNoise(8192, 0.5, 3)

	a := NewFilterBank(44100, WithScale([]string{"C#4"}))
	b := NewFilterBank(44100, WithScale([]string{"Db4", "c#4", "CS4", "C#4"}))
	if !reflect.DeepEqual(a.ActiveNotes(), b.ActiveNotes()) {
		t.Fatalf("active sets differ: %v vs %v", a.ActiveNotes(), b.ActiveNotes())
	}
	ya := runBank(a, 0, x)
	yb := runBank(b, 0, x)
	for i := range ya {
		if ya[i] != yb[i] {
			t.Fatalf("outputs differ at %d: %g vs %g", i, ya[i], yb[i])
		}
	}
}

func TestFilterBankSetScaleReturnsRejected(t *testing.T) {
	b := NewFilterBank(44100)
	rejected := b.SetScale([]string{"A4", "H2", "C9", "E#3"})
	if !reflect.DeepEqual(rejected, []string{"H2", "C9", "E#3"}) {
		t.Fatalf("unexpected rejected names %v", rejected)
	}
	if !reflect.DeepEqual(b.ActiveNotes(), []Note{NoteA4}) {
		t.Fatalf("expected valid names to be applied, got %v", b.ActiveNotes())
	}
}

func TestFilterBankPassesA4AndRejectsA3(t *testing.T) {
	const sr = 44100.0
	b := NewFilterBank(sr, WithScale([]string{"A4"}))
	boost := dsp.PeakGain(b.BoostDB()) - 1

	x := makeSine(t, sr, 440, 0.5, 4*int(sr))
	y := runBank(b, 0, x)
	tail := y[len(y)-int(sr):]
	level := toneAmplitude(t, tail, 440, sr) / boost
	if math.Abs(level-0.5) > 0.01 {
		t.Fatalf("expected A4 to pass at unity after makeup, got %g", level)
	}

	b.Reset()
	x = makeSine(t, sr, 220, 0.5, 4*int(sr))
	y = runBank(b, 0, x)
	tail = y[len(y)-int(sr):]
	level = toneAmplitude(t, tail, 220, sr) / boost
	if level > 0.5*0.01 {
		t.Fatalf("expected A3 to be rejected by at least 40 dB, got %g", level)
	}
}

func TestFilterBankBoundedOutput(t *testing.T) {
	for _, sr := range []float64{44100, 48000, 96000} {
		b := NewFilterBank(sr, WithScale(mustScale(t, "chromatic")))
		x := makeNoise(int(sr), 0.5, 4)
		y := runBank(b, 0, x)
		if !allFinite(y) {
			t.Fatalf("sr=%g: non-finite output", sr)
		}
		if p := peakAbs(y); p > 1e4 {
			t.Fatalf("sr=%g: output peak %g out of bounds", sr, p)
		}
	}
}

func TestFilterBankSampleRateChange(t *testing.T) {
	b := NewFilterBank(44100, WithScale(mustScale(t, "chromatic")))
	runBank(b, 0, makeNoise(4096, 0.5, 5))

	b.SetSampleRate(96000)
	if b.SampleRate() != 96000 {
		t.Fatalf("expected 96000, got %g", b.SampleRate())
	}
	for n := MinNote; n <= MaxNote; n++ {
		want := dsp.DesignPeak(n.Frequency(), 96000, b.Q(), b.Gain(n))
		if b.Coefficients(n) != want {
			t.Fatalf("note %v: coefficients not recomputed", n)
		}
		if b.state[0][n].State() != [4]float64{} {
			t.Fatalf("note %v: state not cleared", n)
		}
	}
	y := runBank(b, 0, makeNoise(96000, 0.5, 6))
	if !allFinite(y) || peakAbs(y) > 1e4 {
		t.Fatalf("unstable output after sample rate change: peak %g", peakAbs(y))
	}

	b.SetSampleRate(0)
	if b.SampleRate() != 96000 {
		t.Fatalf("invalid rate must be ignored, got %g", b.SampleRate())
	}
}

func TestFilterBankLowSampleRateBypassesHighNotes(t *testing.T) {
	b := NewFilterBank(8000, WithScale(mustScale(t, "chromatic")))
	for n := MinNote; n <= MaxNote; n++ {
		aboveNyquist := n.Frequency() >= 4000
		if aboveNyquist != dsp.IsIdentity(b.Coefficients(n)) {
			t.Fatalf("note %v (%g Hz): identity=%v", n, n.Frequency(), dsp.IsIdentity(b.Coefficients(n)))
		}
	}
	y := runBank(b, 0, makeNoise(8000, 0.5, 7))
	if !allFinite(y) {
		t.Fatal("non-finite output at 8 kHz")
	}
}

func TestFilterBankReactivatedNoteStartsClean(t *testing.T) {
	b := NewFilterBank(44100, WithScale([]string{"A4"}))
	runBank(b, 0, makeSine(t, 44100, 440, 0.5, 2048))
	if b.state[0][NoteA4].State() == [4]float64{} {
		t.Fatal("expected A4 registers to hold state after processing")
	}
	b.SetScale(nil)
	b.SetScale([]string{"A4"})
	if b.state[0][NoteA4].State() != [4]float64{} {
		t.Fatal("expected A4 registers cleared on activation")
	}
}

func TestFilterBankGainChangeKeepsState(t *testing.T) {
	b := NewFilterBank(44100, WithScale([]string{"A4"}))
	runBank(b, 0, makeSine(t, 44100, 440, 0.5, 2048))
	before := b.state[0][NoteA4].State()
	b.SetNoteGain(NoteA4, 30)
	if b.state[0][NoteA4].State() != before {
		t.Fatal("gain change on a live note must not clear its registers")
	}
	if b.Coefficients(NoteA4) != dsp.DesignPeak(440, 44100, b.Q(), 30) {
		t.Fatal("expected A4 coefficients redesigned for 30 dB")
	}
}

func TestFilterBankSetQRedesignsAll(t *testing.T) {
	b := NewFilterBank(44100)
	b.SetQ(5)
	for _, n := range b.ActiveNotes() {
		if b.Coefficients(n) != dsp.DesignPeak(n.Frequency(), 44100, 5, b.Gain(n)) {
			t.Fatalf("note %v: coefficients not redesigned for q=5", n)
		}
	}
	b.SetQ(-1)
	if b.Q() != 5 {
		t.Fatalf("invalid q must be ignored, got %g", b.Q())
	}
}

func TestFilterBankChannelsAreIndependent(t *testing.T) {
	b := NewFilterBank(44100, WithScale([]string{"A4"}))
	x := makeSine(t, 44100, 440, 0.5, 1024)
	y0 := runBank(b, 0, x)
	if b.state[1][NoteA4].State() != [4]float64{} {
		t.Fatal("channel 1 state changed by channel 0 processing")
	}
	y1 := runBank(b, 1, x)
	for i := range y0 {
		if y0[i] != y1[i] {
			t.Fatalf("channels differ at %d", i)
		}
	}
	if y := b.ProcessSample(5, 1); y != 0 {
		t.Fatalf("expected zero for out-of-range channel, got %g", y)
	}
}

func TestFilterBankProcessBlockMatchesSample(t *testing.T) {
	a := NewFilterBank(48000)
	b := NewFilterBank(48000)
	x := makeNoise(2048, 0.5, 8)
	want := runBank(a, 0, x)
	buf := append([]float64(nil), x...)
	b.ProcessBlock(0, buf)
	for i := range buf {
		if buf[i] != want[i] {
			t.Fatalf("block and per-sample differ at %d", i)
		}
	}
}

func TestMakeupGain(t *testing.T) {
	if g := MakeupGain(40); math.Abs(g-1.0/99.0) > 1e-12 {
		t.Fatalf("expected 1/99, got %g", g)
	}
	if g := MakeupGain(0); g != 1 {
		t.Fatalf("expected 1 at 0 dB, got %g", g)
	}
}

func TestFilterBankProcessSampleDoesNotAllocate(t *testing.T) {
	b := NewFilterBank(44100, WithScale(mustScale(t, "chromatic")))
	allocs := testing.AllocsPerRun(100, func() {
		for i := 0; i < 64; i++ {
			b.ProcessSample(0, 0.25)
		}
	})
	if allocs != 0 {
		t.Fatalf("expected no allocations, got %g", allocs)
	}
}

func mustScale(t *testing.T, name string) []string {
	t.Helper()
	names, err := ScaleByName(name, "C")
	if err != nil {
		t.Fatalf("scale %q: %v", name, err)
	}
	return names
}
