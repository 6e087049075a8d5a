// Package detect decides when the ambient soundscape contains a bird
// call worth recording. It holds the noise-floor calibrator that fixes
// the detection threshold at boot, and the hysteresis state machine
// that turns per-block measurements into sustained sound events.
package detect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/user/chirp-station/internal/audio"
	"github.com/user/chirp-station/internal/dsp"
)

// ErrNoAudio is returned when the source starves during calibration.
// The device must not invent a threshold, so this is fatal at boot.
var ErrNoAudio = errors.New("no audio received during calibration")

// emptyReadBudget is how many consecutive empty reads calibration
// tolerates before concluding the source is dead.
const emptyReadBudget = 50

// Profile is the result of a noise-floor calibration pass.
type Profile struct {
	NoiseFloor   float64   `json:"noise_floor"`
	Threshold    float64   `json:"threshold"`
	CalibratedAt time.Time `json:"calibrated_at"`
}

// Calibrator measures the ambient noise floor and derives the VAD
// threshold from it.
type Calibrator struct {
	blocks    int
	factor    float64
	blockSize int
}

// NewCalibrator returns a calibrator that averages the RMS of the
// given number of data-bearing blocks and sets the threshold to
// factor times the measured floor.
func NewCalibrator(blocks int, factor float64, blockSize int) *Calibrator {
	return &Calibrator{blocks: blocks, factor: factor, blockSize: blockSize}
}

// Run reads blocks from the source until enough have been collected,
// then returns the measured profile. The blocks are consumed from the
// stream; calibration happens before detection starts, never
// concurrently with it. Samples are measured unfiltered: the floor
// must include the low-frequency ambient the filter would hide.
func (c *Calibrator) Run(ctx context.Context, src audio.Source) (Profile, error) {
	log.Info().Int("blocks", c.blocks).Msg("Calibrating noise floor")

	var sum float64
	collected := 0
	empties := 0
	for collected < c.blocks {
		if err := ctx.Err(); err != nil {
			return Profile{}, err
		}

		left, right, err := src.Read(ctx, c.blockSize)
		if err != nil {
			return Profile{}, fmt.Errorf("calibration read failed: %w", err)
		}
		if len(left) == 0 {
			empties++
			if empties >= emptyReadBudget {
				return Profile{}, ErrNoAudio
			}
			continue
		}
		empties = 0

		sum += dsp.RMS(dsp.Mix(left, right))
		collected++
	}

	floor := sum / float64(c.blocks)
	profile := Profile{
		NoiseFloor:   floor,
		Threshold:    floor * c.factor,
		CalibratedAt: time.Now(),
	}

	log.Info().
		Float64("noise_floor", profile.NoiseFloor).
		Float64("threshold", profile.Threshold).
		Msg("Calibration complete")

	return profile, nil
}
