package training

// PlateauMonitor tracks whether a per-epoch metric has stopped improving.
// It is stepped once per validated epoch.
type PlateauMonitor struct {
	Patience  int     // Number of epochs with no improvement before a plateau is reported
	Threshold float64 // Minimum change that counts as an improvement
	Mode      string  // One of "min" or "max"

	bestMetric  float64
	badEpochs   int
	initialized bool
}

// NewPlateauMonitor creates a plateau monitor
func NewPlateauMonitor(patience int, threshold float64, mode string) *PlateauMonitor {
	if patience <= 0 {
		patience = 10
	}
	if threshold < 0 {
		threshold = 1e-4
	}
	if mode != "min" && mode != "max" {
		mode = "max" // Default: maximize AUC
	}

	return &PlateauMonitor{
		Patience:  patience,
		Threshold: threshold,
		Mode:      mode,
	}
}

// Step records the epoch metric and reports whether the metric has gone
// Patience epochs without improving.
func (p *PlateauMonitor) Step(metric float64) bool {
	if !p.initialized {
		p.bestMetric = metric
		p.initialized = true
		return false
	}

	var improved bool
	if p.Mode == "min" {
		improved = metric < p.bestMetric-p.Threshold
	} else {
		improved = metric > p.bestMetric+p.Threshold
	}

	if improved {
		p.bestMetric = metric
		p.badEpochs = 0
		return false
	}

	p.badEpochs++
	return p.badEpochs >= p.Patience
}

// BadEpochs returns the number of consecutive epochs without improvement
func (p *PlateauMonitor) BadEpochs() int {
	return p.badEpochs
}

// Reset forgets the best metric
func (p *PlateauMonitor) Reset() {
	p.bestMetric = 0
	p.badEpochs = 0
	p.initialized = false
}
