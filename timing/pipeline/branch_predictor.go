package pipeline

import (
	"math/bits"

	"github.com/sarchlab/pqr5sim/insts"
)

// PredictorKind selects the fetch-stage branch predictor.
type PredictorKind int

// Predictor kinds.
const (
	// PredictorNone makes no forward predictions: every taken branch is
	// discovered at execute and pays the full flush penalty.
	PredictorNone PredictorKind = iota
	// PredictorStatic predicts JAL taken and conditional branches taken
	// iff their offset is negative (backward-branch-taken heuristic).
	PredictorStatic
	// PredictorGshare predicts conditional branches from a table of
	// 2-bit saturating counters indexed by PC xor folded global history.
	// JAL is always predicted taken.
	PredictorGshare
)

// BranchPredictorConfig holds configuration for the dynamic predictor.
type BranchPredictorConfig struct {
	// Kind selects the predictor.
	Kind PredictorKind
	// BHTSize is the number of entries in the branch history table.
	// Must be a power of 2. Default is 256.
	BHTSize uint32
	// GHRWidth is the global history register width in bits. Default 8.
	GHRWidth uint8
}

// DefaultBranchPredictorConfig returns the default configuration.
func DefaultBranchPredictorConfig() BranchPredictorConfig {
	return BranchPredictorConfig{
		Kind:     PredictorGshare,
		BHTSize:  256,
		GHRWidth: 8,
	}
}

// BranchPredictorStats holds predictor statistics.
type BranchPredictorStats struct {
	// Predictions is the total number of conditional-branch predictions
	// resolved.
	Predictions uint64
	// Correct is the number of correct predictions.
	Correct uint64
	// Mispredictions is the number of incorrect predictions.
	Mispredictions uint64
}

// Accuracy returns the prediction accuracy as a percentage.
func (s BranchPredictorStats) Accuracy() float64 {
	if s.Predictions == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Predictions) * 100
}

// Prediction represents a fetch-stage branch prediction.
type Prediction struct {
	// Taken indicates the fetch stream should redirect.
	Taken bool
	// Target is the predicted target PC.
	Target uint32
}

// BranchPredictor implements the static and Gshare fetch-stage predictors
// behind one interface. The Gshare path keeps a branch history table of
// 2-bit saturating counters ({00 strongly-not-taken .. 11 strongly-taken})
// and a global history register; predictions index the table by the
// exclusive-or of folded history and PC bits above the word-alignment
// boundary.
type BranchPredictor struct {
	kind PredictorKind

	bht       []uint8
	indexMask uint32
	indexBits uint8

	ghr     uint32
	ghrMask uint32

	stats BranchPredictorStats
}

// NewBranchPredictor creates a predictor with the given configuration.
func NewBranchPredictor(config BranchPredictorConfig) *BranchPredictor {
	size := config.BHTSize
	if size == 0 {
		size = 256
	}
	width := config.GHRWidth
	if width == 0 {
		width = 8
	}

	return &BranchPredictor{
		kind:      config.Kind,
		bht:       make([]uint8, size),
		indexMask: size - 1,
		indexBits: uint8(bits.TrailingZeros32(size)),
		ghrMask:   uint32(1)<<width - 1,
	}
}

// Kind returns the configured predictor kind.
func (bp *BranchPredictor) Kind() PredictorKind {
	return bp.kind
}

// GHR returns the current global history register value. The fetch stage
// snapshots this alongside every prediction so resolution can index the BHT
// with the history that existed at prediction time.
func (bp *BranchPredictor) GHR() uint32 {
	return bp.ghr
}

// index computes the BHT index for a PC and history value: the history is
// XOR-folded into index-width buckets by bit position, then XORed with the
// PC bits above the word-alignment boundary.
func (bp *BranchPredictor) index(pc, ghr uint32) uint32 {
	if bp.indexBits == 0 {
		return 0
	}
	folded := uint32(0)
	for i := uint8(0); ghr != 0; i++ {
		if ghr&1 != 0 {
			folded ^= 1 << (i % bp.indexBits)
		}
		ghr >>= 1
	}
	return (folded ^ pc>>2) & bp.indexMask
}

// Predict makes a fetch-stage prediction for a control-flow instruction.
// Non-control instructions never reach here: the fetch stage fully decodes
// the instruction word, so BHT aliasing cannot redirect a non-branch.
func (bp *BranchPredictor) Predict(inst *insts.Instruction, pc uint32) Prediction {
	if bp.kind == PredictorNone {
		return Prediction{}
	}
	switch {
	case inst.Op == insts.OpJAL:
		// Unconditional with a statically known target: always taken.
		return Prediction{Taken: true, Target: pc + uint32(inst.Imm)}
	case inst.IsBranch():
		return Prediction{
			Taken:  bp.predictConditional(inst, pc),
			Target: pc + uint32(inst.Imm),
		}
	default:
		// JALR targets are structurally unpredictable here; the
		// return-address stack handles the RET subset.
		return Prediction{}
	}
}

func (bp *BranchPredictor) predictConditional(inst *insts.Instruction, pc uint32) bool {
	switch bp.kind {
	case PredictorStatic:
		return inst.Imm < 0
	case PredictorGshare:
		counter := bp.bht[bp.index(pc, bp.ghr)]
		return counter >= 2
	default:
		return false
	}
}

// Update resolves a conditional branch. ghrSnapshot must be the GHR value
// captured when the branch was predicted; the BHT write port indexes with
// it while the read port may simultaneously serve a new prediction at a
// different (or the same) index. The counter saturates at both ends, and
// the actual outcome shifts into the GHR.
func (bp *BranchPredictor) Update(pc uint32, ghrSnapshot uint32, taken, predicted bool) {
	bp.stats.Predictions++
	if predicted == taken {
		bp.stats.Correct++
	} else {
		bp.stats.Mispredictions++
	}

	if bp.kind == PredictorGshare {
		idx := bp.index(pc, ghrSnapshot)
		counter := bp.bht[idx]
		if taken {
			if counter < 3 {
				bp.bht[idx] = counter + 1
			}
		} else {
			if counter > 0 {
				bp.bht[idx] = counter - 1
			}
		}

		outcome := uint32(0)
		if taken {
			outcome = 1
		}
		bp.ghr = (bp.ghr<<1 | outcome) & bp.ghrMask
	}
}

// Counter exposes the BHT counter at the index formed from pc and ghr.
func (bp *BranchPredictor) Counter(pc, ghr uint32) uint8 {
	return bp.bht[bp.index(pc, ghr)]
}

// Stats returns the predictor statistics.
func (bp *BranchPredictor) Stats() BranchPredictorStats {
	return bp.stats
}

// Reset clears predictor state and statistics.
func (bp *BranchPredictor) Reset() {
	for i := range bp.bht {
		bp.bht[i] = 0
	}
	bp.ghr = 0
	bp.stats = BranchPredictorStats{}
}
