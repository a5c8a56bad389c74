package training

import (
	"gonum.org/v1/gonum/floats"
)

// Logs carries the values the training framework reports at the end of an
// epoch. Nil fields were not reported.
type Logs struct {
	Loss        float64  `json:"loss" yaml:"loss"`
	Accuracy    *float64 `json:"acc,omitempty" yaml:"acc,omitempty"`
	ValLoss     *float64 `json:"val_loss,omitempty" yaml:"val_loss,omitempty"`
	ValAccuracy *float64 `json:"val_acc,omitempty" yaml:"val_acc,omitempty"`
}

// Float returns a pointer to v, for filling optional Logs fields.
func Float(v float64) *float64 {
	return &v
}

// EpochRecord is the immutable result of one completed epoch.
type EpochRecord struct {
	Epoch         int      `json:"epoch" yaml:"epoch"`
	TrainLoss     float64  `json:"train_loss" yaml:"train_loss"`
	TrainAccuracy *float64 `json:"train_accuracy,omitempty" yaml:"train_accuracy,omitempty"`

	// Validated is false for epochs logged without validation data; the
	// fields below are then zero.
	Validated   bool    `json:"validated" yaml:"validated"`
	ValLoss     float64 `json:"val_loss" yaml:"val_loss"`
	ValAccuracy float64 `json:"val_accuracy" yaml:"val_accuracy"`
	Score       float64 `json:"score" yaml:"score"`

	// Rates are the confusion-matrix metrics at the 0.5 decision threshold
	Rates ThresholdMetrics `json:"rates" yaml:"rates"`

	// NewBest marks the record that raised the running best score
	NewBest bool `json:"new_best" yaml:"new_best"`
	ROC     *ROC `json:"roc,omitempty" yaml:"roc,omitempty"`
}

// BestTracker holds the running maximum score and the epoch that reached it.
type BestTracker struct {
	Score float64 `json:"score" yaml:"score"`
	Epoch int     `json:"epoch" yaml:"epoch"`
	Set   bool    `json:"set" yaml:"set"`
}

func (bt BestTracker) beats(score float64) bool {
	return !bt.Set || score > bt.Score
}

// offer updates the tracker when score strictly beats the current best.
// Equal scores keep the earlier epoch.
func (bt *BestTracker) offer(epoch int, score float64) bool {
	if !bt.beats(score) {
		return false
	}
	bt.Score = score
	bt.Epoch = epoch
	bt.Set = true
	return true
}

// History is the append-only sequence of epoch records in submission order.
type History struct {
	records []EpochRecord
}

// NewHistory rebuilds a history from records, e.g. after loading a snapshot.
func NewHistory(records []EpochRecord) History {
	return History{records: append([]EpochRecord(nil), records...)}
}

func (h *History) append(r EpochRecord) {
	h.records = append(h.records, r)
}

// Len returns the number of recorded epochs
func (h History) Len() int {
	return len(h.records)
}

// Records returns a copy of every record
func (h History) Records() []EpochRecord {
	return append([]EpochRecord(nil), h.records...)
}

// At returns the i-th record in submission order
func (h History) At(i int) EpochRecord {
	return h.records[i]
}

// Last returns the most recent record
func (h History) Last() (EpochRecord, bool) {
	if len(h.records) == 0 {
		return EpochRecord{}, false
	}
	return h.records[len(h.records)-1], true
}

// Validated returns only the records that carry a score
func (h History) Validated() []EpochRecord {
	var out []EpochRecord
	for _, r := range h.records {
		if r.Validated {
			out = append(out, r)
		}
	}
	return out
}

// Epochs returns the epoch index of every record
func (h History) Epochs() []int {
	out := make([]int, len(h.records))
	for i, r := range h.records {
		out[i] = r.Epoch
	}
	return out
}

// TrainLosses returns the training loss of every record
func (h History) TrainLosses() []float64 {
	out := make([]float64, len(h.records))
	for i, r := range h.records {
		out[i] = r.TrainLoss
	}
	return out
}

// ValLosses returns the validation loss of every validated record
func (h History) ValLosses() []float64 {
	var out []float64
	for _, r := range h.records {
		if r.Validated {
			out = append(out, r.ValLoss)
		}
	}
	return out
}

// Scores returns the score of every validated record
func (h History) Scores() []float64 {
	var out []float64
	for _, r := range h.records {
		if r.Validated {
			out = append(out, r.Score)
		}
	}
	return out
}

// Best recomputes the best score from the records. The first record holding
// the maximum wins ties.
func (h History) Best() BestTracker {
	validated := h.Validated()
	if len(validated) == 0 {
		return BestTracker{}
	}
	scores := make([]float64, len(validated))
	for i, r := range validated {
		scores[i] = r.Score
	}
	idx := floats.MaxIdx(scores)
	return BestTracker{Score: scores[idx], Epoch: validated[idx].Epoch, Set: true}
}
