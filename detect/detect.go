// Package detect classifies a leaf image against the disease catalogue.
package detect

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"MaizeAIBackend/models"
)

var ErrEmptyCatalogue = errors.New("disease catalogue is empty")

type Input struct {
	ImageURL string
	Catalog  []models.Disease
}

// Detection is a classifier verdict. A nil Disease means the leaf looks healthy.
type Detection struct {
	Disease    *models.Disease
	Confidence float64
}

type Detector interface {
	Detect(ctx context.Context, in Input) (Detection, error)
}

const (
	DefaultDiseaseProbability = 0.7
	minConfidence             = 0.7
	confidenceSpread          = 0.3
)

// Random stands in for a classifier: it reports a uniformly chosen disease
// with the configured probability and a confidence in [0.7, 1.0).
type Random struct {
	mu          sync.Mutex
	rng         *rand.Rand
	probability float64
}

func NewRandom(rng *rand.Rand, probability float64) *Random {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Random{rng: rng, probability: probability}
}

func (r *Random) Detect(ctx context.Context, in Input) (Detection, error) {
	if err := ctx.Err(); err != nil {
		return Detection{}, err
	}
	if len(in.Catalog) == 0 {
		return Detection{}, ErrEmptyCatalogue
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rng.Float64() >= r.probability {
		return Detection{}, nil
	}
	d := in.Catalog[r.rng.Intn(len(in.Catalog))]
	return Detection{Disease: &d, Confidence: minConfidence + r.rng.Float64()*confidenceSpread}, nil
}

// Fixed always returns the same verdict.
type Fixed struct {
	DiseaseID  string
	Confidence float64
	Err        error
}

func (f Fixed) Detect(_ context.Context, in Input) (Detection, error) {
	if f.Err != nil {
		return Detection{}, f.Err
	}
	if f.DiseaseID == "" {
		return Detection{}, nil
	}
	for _, d := range in.Catalog {
		if d.ID == f.DiseaseID {
			d := d
			return Detection{Disease: &d, Confidence: f.Confidence}, nil
		}
	}
	return Detection{}, ErrUnknownDisease
}
