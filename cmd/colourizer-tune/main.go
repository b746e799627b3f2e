package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-colourizer/analysis"
	"github.com/cwbudde/algo-colourizer/colourizer"
	"github.com/cwbudde/algo-colourizer/preset"
)

type tuneReport struct {
	PassNote      string             `json:"pass_note"`
	RejectNote    string             `json:"reject_note"`
	SampleRate    int                `json:"sample_rate"`
	Evals         int                `json:"evals"`
	ElapsedSec    float64            `json:"elapsed_sec"`
	MayflyVariant string             `json:"mayfly_variant"`
	BestScore     float64            `json:"best_score"`
	BestMetrics   analysis.Metrics   `json:"best_metrics"`
	BestKnobs     map[string]float64 `json:"best_knobs"`
	TopCandidates []topCandidate     `json:"top_candidates"`
}

func main() {
	presetPath := flag.String("preset", "", "Base preset JSON path (optional)")
	outputPreset := flag.String("output-preset", "tuned.json", "Path to write the tuned preset JSON")
	reportPath := flag.String("report", "", "Optional report JSON path (default: <output-preset>.report.json)")
	passName := flag.String("note", "A4", "Enabled note whose tone must pass")
	rejectName := flag.String("reject", "", "Disabled note whose tone must be rejected (default: one semitone below -note)")
	sampleRate := flag.Int("sample-rate", 44100, "Render/analysis sample rate")
	duration := flag.Float64("duration", 3.0, "Rendered seconds per evaluation (last second is analysed)")
	blockSize := flag.Int("block-size", 256, "Processing block size per evaluation")
	qMin := flag.Float64("q-min", 2, "Lower bound for Q")
	qMax := flag.Float64("q-max", 200, "Upper bound for Q")
	boostMin := flag.Float64("boost-min", 6, "Lower bound for boost in dB")
	boostMax := flag.Float64("boost-max", 48, "Upper bound for boost in dB")
	seed := flag.Int64("seed", 1, "Random seed")
	timeBudget := flag.Float64("time-budget", 60.0, "Optimization time budget in seconds")
	maxEvals := flag.Int("max-evals", 400, "Maximum objective evaluations")
	reportEvery := flag.Int("report-every", 20, "Print progress every N evaluations")
	topK := flag.Int("top-k", 5, "How many top candidates to keep in report")
	workers := flag.String("workers", "1", "Parallel workers running independent Mayfly rounds (number or 'auto')")
	mayflyVariant := flag.String("mayfly-variant", "desma", "Mayfly variant: ma|desma|olce|eobbma|gsasma|mpma|aoblmoa")
	mayflyPop := flag.Int("mayfly-pop", 10, "Male and female population size per Mayfly run")
	mayflyRoundEvals := flag.Int("mayfly-round-evals", 120, "Target eval budget per Mayfly round")
	flag.Parse()

	passNote, ok := colourizer.ParseNote(*passName)
	if !ok {
		die("invalid -note %q", *passName)
	}
	rejectNote := passNote - 1
	if *rejectName != "" {
		rejectNote, ok = colourizer.ParseNote(*rejectName)
		if !ok {
			die("invalid -reject %q", *rejectName)
		}
	}
	if !rejectNote.Valid() || rejectNote == passNote {
		die("reject note must be a valid note different from %s", passNote)
	}
	if passNote.Frequency() >= float64(*sampleRate)/2 || rejectNote.Frequency() >= float64(*sampleRate)/2 {
		die("notes must lie below Nyquist (%d Hz)", *sampleRate/2)
	}
	if *outputPreset == "" {
		die("output-preset must not be empty")
	}
	if *maxEvals < 1 {
		die("max-evals must be >= 1")
	}
	if *timeBudget <= 0 {
		die("time-budget must be > 0")
	}
	if *qMin <= 0 || *qMax < *qMin {
		die("q bounds must satisfy 0 < q-min <= q-max")
	}
	if *boostMin <= 0 || *boostMax < *boostMin {
		die("boost bounds must satisfy 0 < boost-min <= boost-max")
	}
	if *blockSize < 16 {
		*blockSize = 16
	}
	if *reportEvery < 1 {
		*reportEvery = 1
	}
	if *mayflyPop < 2 {
		*mayflyPop = 2
	}
	if *mayflyRoundEvals < *mayflyPop*2 {
		*mayflyRoundEvals = *mayflyPop * 2
	}
	if *topK < 1 {
		*topK = 1
	}
	parsedWorkers, err := parseWorkers(*workers)
	if err != nil {
		die("invalid workers value: %v", err)
	}

	baseParams := colourizer.NewDefaultParams()
	if *presetPath != "" {
		baseParams, err = preset.LoadJSON(*presetPath)
		if err != nil {
			die("failed to load preset: %v", err)
		}
	}

	variant := strings.ToLower(*mayflyVariant)
	cfg := &tuneConfig{
		baseParams:       baseParams,
		defs:             defaultKnobs(*qMin, *qMax, *boostMin, *boostMax),
		passNote:         passNote,
		rejectNote:       rejectNote,
		sampleRate:       *sampleRate,
		duration:         *duration,
		blockSize:        *blockSize,
		seed:             *seed,
		timeBudget:       *timeBudget,
		maxEvals:         *maxEvals,
		reportEvery:      *reportEvery,
		mayflyVariant:    variant,
		mayflyPop:        *mayflyPop,
		mayflyRoundEvals: *mayflyRoundEvals,
		workers:          parsedWorkers,
		topK:             *topK,
	}

	fmt.Printf("Tuning %s against %s at %d Hz (variant %s, max %d evals)...\n", passNote, rejectNote, *sampleRate, variant, *maxEvals)
	result, err := runTuning(cfg)
	if err != nil {
		die("tuning failed: %v", err)
	}

	if err := preset.SaveJSON(*outputPreset, result.bestParams); err != nil {
		die("failed to write preset: %v", err)
	}
	if *reportPath == "" {
		*reportPath = *outputPreset + ".report.json"
	}
	knobs := make(map[string]float64, len(cfg.defs))
	for i, d := range cfg.defs {
		knobs[d.Name] = result.best.Vals[i]
	}
	rep := tuneReport{
		PassNote:      passNote.String(),
		RejectNote:    rejectNote.String(),
		SampleRate:    *sampleRate,
		Evals:         result.evals,
		ElapsedSec:    result.elapsed,
		MayflyVariant: variant,
		BestScore:     result.bestMetrics.Score,
		BestMetrics:   result.bestMetrics,
		BestKnobs:     knobs,
		TopCandidates: result.top,
	}
	if err := writeJSON(*reportPath, rep); err != nil {
		die("failed to write report: %v", err)
	}

	fmt.Printf("Done evals=%d elapsed=%.1fs best_score=%.4f isolation=%.2f dB q=%.2f boost=%.2f dB\n",
		result.evals, result.elapsed, result.bestMetrics.Score, result.bestMetrics.IsolationDB, result.bestParams.Q, result.bestParams.BoostDB)
	fmt.Printf("Wrote %s and %s\n", *outputPreset, *reportPath)
}

func parseWorkers(raw string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return 0, fmt.Errorf("empty value (use integer >= 1 or 'auto')")
	}
	if v == "auto" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%q (use integer >= 1 or 'auto')", raw)
	}
	if n < 1 {
		return 0, fmt.Errorf("%d (must be >= 1 or 'auto')", n)
	}
	return n, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644)
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
