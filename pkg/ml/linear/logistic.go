// Package linear fits and evaluates the logistic models behind the film
// scorers.
package linear

import (
	"errors"
	"fmt"
	"math"
)

type Options struct {
	Epochs       int
	LearningRate float64
	// L2 shrinks coefficients toward zero; the bias is not penalised.
	L2 float64
	// Tolerance stops training once the loss improves by less than this.
	Tolerance float64
}

type Weights struct {
	Bias         float64   `json:"bias"`
	Coefficients []float64 `json:"coefficients"`
}

type Metrics struct {
	Loss      float64 `json:"loss"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	Epochs    int     `json:"epochs"`
}

// Fit runs batch gradient descent over samples with 0/1 labels.
func Fit(samples [][]float64, labels []float64, opts Options) (Weights, Metrics, error) {
	if len(samples) == 0 {
		return Weights{}, Metrics{}, errors.New("no training samples")
	}
	if len(samples) != len(labels) {
		return Weights{}, Metrics{}, fmt.Errorf("%d samples but %d labels", len(samples), len(labels))
	}
	width := len(samples[0])
	for i, s := range samples {
		if len(s) != width {
			return Weights{}, Metrics{}, fmt.Errorf("sample %d has %d features, want %d", i, len(s), width)
		}
		if labels[i] != 0 && labels[i] != 1 {
			return Weights{}, Metrics{}, fmt.Errorf("label %d is %v, want 0 or 1", i, labels[i])
		}
	}
	if opts.Epochs <= 0 {
		opts.Epochs = 200
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = 0.01
	}

	w := Weights{Coefficients: make([]float64, width)}
	n := float64(len(samples))
	prevLoss := math.Inf(1)
	epochs := 0
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		epochs++
		grad := make([]float64, width)
		var biasGrad float64
		for i, sample := range samples {
			diff := Predict(w, sample) - labels[i]
			for j, v := range sample {
				grad[j] += diff * v
			}
			biasGrad += diff
		}
		for j := range w.Coefficients {
			w.Coefficients[j] -= opts.LearningRate * (grad[j]/n + opts.L2*w.Coefficients[j])
		}
		w.Bias -= opts.LearningRate * biasGrad / n

		if opts.Tolerance > 0 {
			loss := Evaluate(w, samples, labels).Loss
			if prevLoss-loss < opts.Tolerance {
				break
			}
			prevLoss = loss
		}
	}

	m := Evaluate(w, samples, labels)
	m.Epochs = epochs
	return w, m, nil
}

// Predict returns P(label = 1) for sample.
func Predict(w Weights, sample []float64) float64 {
	z := w.Bias
	for i, c := range w.Coefficients {
		z += c * sample[i]
	}
	return Sigmoid(z)
}

func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Evaluate scores w on a labelled set at the 0.5 decision threshold.
func Evaluate(w Weights, samples [][]float64, labels []float64) Metrics {
	var m Metrics
	if len(samples) == 0 {
		return m
	}
	var tp, fp, fn, correct int
	for i, sample := range samples {
		p := Predict(w, sample)
		m.Loss += -labels[i]*math.Log(p+1e-9) - (1-labels[i])*math.Log(1-p+1e-9)
		positive := p >= 0.5
		switch {
		case positive && labels[i] == 1:
			tp++
			correct++
		case !positive && labels[i] == 0:
			correct++
		case positive:
			fp++
		default:
			fn++
		}
	}
	m.Loss /= float64(len(samples))
	m.Accuracy = float64(correct) / float64(len(samples))
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	return m
}
