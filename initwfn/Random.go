package initwfn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// fans returns the fan in and fan out of a weight tensor with the
// given shape. Vectors are treated as a single row.
func fans(shape ...int) (fanIn, fanOut float64) {
	switch len(shape) {
	case 0:
		return 1, 1
	case 1:
		return 1, float64(shape[0])
	}
	receptive := 1
	for _, s := range shape[2:] {
		receptive *= s
	}
	return float64(shape[0] * receptive), float64(shape[1] * receptive)
}

// fromDistribution returns a Gorgonia InitWFn which fills tensors
// with samples from the distribution returned by dist. The dist
// function receives the fan in and fan out of the tensor being
// initialized. Samples are drawn from src, so successive tensors
// receive different values.
func fromDistribution(src rand.Source,
	dist func(fanIn, fanOut float64) distuv.Rander) G.InitWFn {
	return func(dt tensor.Dtype, shape ...int) interface{} {
		fanIn, fanOut := fans(shape...)
		d := dist(fanIn, fanOut)

		size := tensor.Shape(shape).TotalSize()
		switch dt {
		case tensor.Float64:
			data := make([]float64, size)
			for i := range data {
				data[i] = d.Rand()
			}
			return data
		case tensor.Float32:
			data := make([]float32, size)
			for i := range data {
				data[i] = float32(d.Rand())
			}
			return data
		}
		panic(fmt.Sprintf("initwfn: unsupported dtype %v", dt))
	}
}

// uniform returns a uniform distribution over [-limit, limit]
func uniform(limit float64, src rand.Source) distuv.Rander {
	return distuv.Uniform{Min: -limit, Max: limit, Src: src}
}

// normal returns a zero mean normal distribution
func normal(std float64, src rand.Source) distuv.Rander {
	return distuv.Normal{Mu: 0, Sigma: std, Src: src}
}

// UniformConfig implements a configuration of a weight initializer that
// draws weights from a uniform distribution
type UniformConfig struct {
	Low, High float64
	Seed      uint64
}

// NewUniform returns a new uniform weight initializer
func NewUniform(low, high float64, seed uint64) (*InitWFn, error) {
	if low > high {
		return nil, fmt.Errorf("newuniform: low (%v) > high (%v)", low, high)
	}
	return newInitWFn(UniformConfig{Low: low, High: high, Seed: seed})
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (u UniformConfig) Type() Type {
	return Uniform
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (u UniformConfig) Create() G.InitWFn {
	src := rand.NewSource(u.Seed)
	return fromDistribution(src, func(_, _ float64) distuv.Rander {
		return distuv.Uniform{Min: u.Low, Max: u.High, Src: src}
	})
}

// GaussianConfig implements a configuration of a weight initializer
// that draws weights from a gaussian distribution
type GaussianConfig struct {
	Mean, StdDev float64
	Seed         uint64
}

// NewGaussian returns a new gaussian weight initializer
func NewGaussian(mean, stddev float64, seed uint64) (*InitWFn, error) {
	if stddev <= 0 {
		return nil, fmt.Errorf("newgaussian: standard deviation must be "+
			"positive, have %v", stddev)
	}
	return newInitWFn(GaussianConfig{Mean: mean, StdDev: stddev, Seed: seed})
}

// Type returns the type of initialization algorithm described by
// the configuration.
func (g GaussianConfig) Type() Type {
	return Gaussian
}

// Create returns the weight initialization algorithm as a Gorgonia
// InitWFn
func (g GaussianConfig) Create() G.InitWFn {
	src := rand.NewSource(g.Seed)
	return fromDistribution(src, func(_, _ float64) distuv.Rander {
		return distuv.Normal{Mu: g.Mean, Sigma: g.StdDev, Src: src}
	})
}

// glorotLimit returns the bound of the Glorot uniform distribution
func glorotLimit(gain, fanIn, fanOut float64) float64 {
	return gain * math.Sqrt(6/(fanIn+fanOut))
}
