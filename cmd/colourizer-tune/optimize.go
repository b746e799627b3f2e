package main

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/algo-colourizer/analysis"
	"github.com/cwbudde/algo-colourizer/colourizer"
	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/signal"
	"github.com/cwbudde/mayfly"
)

type knobDef struct {
	Name string
	Min  float64
	Max  float64
	Log  bool
}

type candidate struct {
	Vals []float64
}

type topCandidate struct {
	Eval        int                `json:"eval"`
	Score       float64            `json:"score"`
	IsolationDB float64            `json:"isolation_db"`
	Knobs       map[string]float64 `json:"knobs"`
}

type tuneConfig struct {
	baseParams       *colourizer.Params
	defs             []knobDef
	passNote         colourizer.Note
	rejectNote       colourizer.Note
	sampleRate       int
	duration         float64
	blockSize        int
	seed             int64
	timeBudget       float64
	maxEvals         int
	reportEvery      int
	mayflyVariant    string
	mayflyPop        int
	mayflyRoundEvals int
	workers          int
	topK             int
}

type tuneResult struct {
	best        candidate
	bestMetrics analysis.Metrics
	bestParams  *colourizer.Params
	top         []topCandidate
	evals       int
	elapsed     float64
}

type tuneState struct {
	mu          sync.Mutex
	best        candidate
	bestMetrics analysis.Metrics
	top         []topCandidate
}

// testSignal holds the dry two-tone input shared by every evaluation.
type testSignal struct {
	dry    []float64
	passHz float64
	rejHz  float64
}

func defaultKnobs(qMin, qMax, boostMin, boostMax float64) []knobDef {
	return []knobDef{
		{Name: "q", Min: qMin, Max: qMax, Log: true},
		{Name: "boost_db", Min: boostMin, Max: boostMax},
	}
}

func newTestSignal(cfg *tuneConfig) (*testSignal, error) {
	n := int(cfg.duration * float64(cfg.sampleRate))
	if n < cfg.sampleRate {
		return nil, fmt.Errorf("duration must cover at least one second")
	}
	gen := signal.NewGenerator(core.WithSampleRate(float64(cfg.sampleRate)))
	passHz := cfg.passNote.Frequency()
	rejHz := cfg.rejectNote.Frequency()
	a, err := gen.Sine(passHz, 0.25, n)
	if err != nil {
		return nil, err
	}
	b, err := gen.Sine(rejHz, 0.25, n)
	if err != nil {
		return nil, err
	}
	for i := range a {
		a[i] += b[i]
	}
	return &testSignal{dry: a, passHz: passHz, rejHz: rejHz}, nil
}

func runTuning(cfg *tuneConfig) (*tuneResult, error) {
	sig, err := newTestSignal(cfg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	deadline := start.Add(time.Duration(cfg.timeBudget * float64(time.Second)))

	seedCand := initCandidate(cfg.baseParams, cfg.defs)
	initMetrics, err := evaluateCandidate(cfg, sig, seedCand)
	if err != nil {
		return nil, fmt.Errorf("initial evaluation failed: %w", err)
	}
	fmt.Printf("Start score=%.4f isolation=%.2f dB settle=%.3fs\n", initMetrics.Score, initMetrics.IsolationDB, initMetrics.SettleSeconds)

	state := &tuneState{
		best:        cloneCandidate(seedCand),
		bestMetrics: initMetrics,
		top:         updateTopCandidates(nil, cfg.topK, 1, initMetrics, cfg.defs, seedCand),
	}

	var evals int64 = 1
	var rounds int64
	var improves int64

	workers := cfg.workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if time.Now().After(deadline) {
					return
				}
				remaining := cfg.maxEvals - int(atomic.LoadInt64(&evals))
				if remaining <= 0 {
					return
				}
				round := int(atomic.AddInt64(&rounds, 1))
				budget := min(cfg.mayflyRoundEvals, remaining)
				iters := max(1, budget/(2*cfg.mayflyPop))

				mcfg, err := newMayflyConfig(cfg.mayflyVariant, cfg.mayflyPop, len(cfg.defs), iters)
				if err != nil {
					fmt.Printf("mayfly round %d setup failed: %v\n", round, err)
					return
				}
				mcfg.Rand = rand.New(rand.NewSource(cfg.seed + int64(round)*7919))
				mcfg.ObjectiveFunc = func(pos []float64) float64 {
					if time.Now().After(deadline) {
						return currentBestScore(state) + 1.0
					}
					evalNum, ok := reserveEval(&evals, cfg.maxEvals)
					if !ok {
						return currentBestScore(state) + 1.0
					}

					cand := fromNormalized(pos, cfg.defs)
					m, err := evaluateCandidate(cfg, sig, cand)
					if err != nil {
						return currentBestScore(state) + 0.8
					}

					state.mu.Lock()
					state.top = updateTopCandidates(state.top, cfg.topK, int(evalNum), m, cfg.defs, cand)
					improved := m.Score < state.bestMetrics.Score
					if improved {
						state.best = cloneCandidate(cand)
						state.bestMetrics = m
					}
					bestScore := state.bestMetrics.Score
					state.mu.Unlock()

					if improved {
						n := atomic.AddInt64(&improves, 1)
						fmt.Printf("Improved #%d eval=%d score=%.4f isolation=%.2f dB q=%.2f boost=%.2f dB\n",
							n, evalNum, m.Score, m.IsolationDB, cand.Vals[0], cand.Vals[1])
					}
					if cfg.reportEvery > 0 && evalNum%int64(cfg.reportEvery) == 0 {
						fmt.Printf("Progress eval=%d/%d elapsed=%.1fs best=%.4f\n", evalNum, cfg.maxEvals, time.Since(start).Seconds(), bestScore)
					}
					return m.Score
				}

				if _, err := runMayfly(mcfg); err != nil {
					fmt.Printf("mayfly round %d failed: %v\n", round, err)
				}
			}
		}()
	}
	wg.Wait()

	state.mu.Lock()
	defer state.mu.Unlock()
	return &tuneResult{
		best:        cloneCandidate(state.best),
		bestMetrics: state.bestMetrics,
		bestParams:  applyCandidate(cfg.baseParams, cfg.defs, state.best),
		top:         cloneTopCandidates(state.top),
		evals:       int(atomic.LoadInt64(&evals)),
		elapsed:     time.Since(start).Seconds(),
	}, nil
}

// evaluateCandidate renders the two-tone signal with only the pass note
// enabled and measures isolation over the final second.
func evaluateCandidate(cfg *tuneConfig, sig *testSignal, cand candidate) (analysis.Metrics, error) {
	params := applyCandidate(cfg.baseParams, cfg.defs, cand)
	params.Scale = []string{cfg.passNote.String()}
	params.PitchClasses = nil
	params.NoteGains = nil
	params.DryWet = 1
	params.Mode = colourizer.ModeMulti

	proc := colourizer.NewProcessor(float64(cfg.sampleRate), 1, params)
	wet := make([]float32, len(sig.dry))
	for i, v := range sig.dry {
		wet[i] = float32(v)
	}
	buf := [][]float32{nil}
	for start := 0; start < len(wet); start += cfg.blockSize {
		end := min(start+cfg.blockSize, len(wet))
		buf[0] = wet[start:end]
		proc.ProcessBlock(buf)
	}
	out := make([]float64, len(wet))
	for i, v := range wet {
		out[i] = float64(v)
	}
	return analysis.Isolation(sig.dry, out, sig.passHz, sig.rejHz, cfg.sampleRate, len(out)-cfg.sampleRate)
}

func initCandidate(p *colourizer.Params, defs []knobDef) candidate {
	vals := make([]float64, len(defs))
	for i, d := range defs {
		switch d.Name {
		case "q":
			vals[i] = p.Q
		case "boost_db":
			vals[i] = p.BoostDB
		}
		vals[i] = clamp(vals[i], d.Min, d.Max)
	}
	return candidate{Vals: vals}
}

func applyCandidate(base *colourizer.Params, defs []knobDef, cand candidate) *colourizer.Params {
	p := base.Clone()
	for i, d := range defs {
		switch d.Name {
		case "q":
			p.Q = cand.Vals[i]
		case "boost_db":
			p.BoostDB = cand.Vals[i]
		}
	}
	return p
}

func fromNormalized(pos []float64, defs []knobDef) candidate {
	vals := make([]float64, len(defs))
	for i, d := range defs {
		x := 0.0
		if i < len(pos) {
			x = clamp(pos[i], 0, 1)
		}
		if d.Log && d.Min > 0 {
			vals[i] = d.Min * math.Pow(d.Max/d.Min, x)
		} else {
			vals[i] = d.Min + x*(d.Max-d.Min)
		}
	}
	return candidate{Vals: vals}
}

func newMayflyConfig(variant string, pop int, dims int, iters int) (*mayfly.Config, error) {
	var cfg *mayfly.Config
	switch variant {
	case "ma":
		cfg = mayfly.NewDefaultConfig()
	case "desma":
		cfg = mayfly.NewDESMAConfig()
	case "olce":
		cfg = mayfly.NewOLCEConfig()
	case "eobbma":
		cfg = mayfly.NewEOBBMAConfig()
	case "gsasma":
		cfg = mayfly.NewGSASMAConfig()
	case "mpma":
		cfg = mayfly.NewMPMAConfig()
	case "aoblmoa":
		cfg = mayfly.NewAOBLMOAConfig()
	default:
		return nil, fmt.Errorf("unsupported variant %q", variant)
	}
	cfg.ProblemSize = dims
	cfg.LowerBound = 0.0
	cfg.UpperBound = 1.0
	cfg.MaxIterations = iters
	cfg.NPop = pop
	cfg.NPopF = pop
	cfg.NC = 2 * pop
	cfg.NM = max(1, int(math.Round(0.05*float64(pop))))
	return cfg, nil
}

func runMayfly(cfg *mayfly.Config) (_ *mayfly.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mayfly panic: %v", r)
		}
	}()
	return mayfly.Optimize(cfg)
}

func reserveEval(evals *int64, maxEvals int) (int64, bool) {
	for {
		cur := atomic.LoadInt64(evals)
		if cur >= int64(maxEvals) {
			return 0, false
		}
		if atomic.CompareAndSwapInt64(evals, cur, cur+1) {
			return cur + 1, true
		}
	}
}

func currentBestScore(state *tuneState) float64 {
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.bestMetrics.Score
}

func updateTopCandidates(top []topCandidate, topK int, eval int, m analysis.Metrics, defs []knobDef, cand candidate) []topCandidate {
	entry := topCandidate{
		Eval:        eval,
		Score:       m.Score,
		IsolationDB: m.IsolationDB,
		Knobs:       make(map[string]float64, len(defs)),
	}
	for i, d := range defs {
		entry.Knobs[d.Name] = cand.Vals[i]
	}
	top = append(top, entry)
	sort.Slice(top, func(i, j int) bool {
		if top[i].Score == top[j].Score {
			return top[i].Eval < top[j].Eval
		}
		return top[i].Score < top[j].Score
	})
	if len(top) > topK {
		top = top[:topK]
	}
	return top
}

func cloneCandidate(c candidate) candidate {
	return candidate{Vals: append([]float64(nil), c.Vals...)}
}

func cloneTopCandidates(in []topCandidate) []topCandidate {
	out := make([]topCandidate, len(in))
	for i, e := range in {
		out[i] = e
		out[i].Knobs = make(map[string]float64, len(e.Knobs))
		for k, v := range e.Knobs {
			out[i].Knobs[k] = v
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
