package scheduler

import (
	"errors"
	"time"
)

// Config holds the scheduler tunables. A zero DelayMax disables the pause
// between businesses.
type Config struct {
	BatchSize       int
	Concurrency     int
	CheckpointEvery int
	DelayMin        time.Duration
	DelayMax        time.Duration
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		BatchSize:       50,
		Concurrency:     2,
		CheckpointEvery: 5,
		DelayMin:        500 * time.Millisecond,
		DelayMax:        1500 * time.Millisecond,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.BatchSize < 1:
		return errors.New("batch size must be >= 1")
	case c.Concurrency < 1:
		return errors.New("concurrency must be >= 1")
	case c.CheckpointEvery < 1:
		return errors.New("checkpoint cadence must be >= 1")
	case c.DelayMin < 0 || c.DelayMax < 0:
		return errors.New("delays must be >= 0")
	case c.DelayMax < c.DelayMin:
		return errors.New("delay max must be >= delay min")
	}
	return nil
}
