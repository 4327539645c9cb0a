// internal/model/ensemble.go
package model

import (
	"fmt"

	"loan-sanction/pkg/artifact"
)

// Info identifies a loaded model.
type Info struct {
	Name            string
	Version         string
	EncodingVersion string
}

// Classifier is a loaded probabilistic classifier. Implementations must be safe for
// concurrent use once constructed.
type Classifier interface {
	Info() Info
	Classes() []string
	FeatureNames() []string
	// PredictProba takes x in FeatureNames order and returns one probability per class.
	PredictProba(x []float64) ([]float64, error)
}

type tree struct {
	feature   []int
	threshold []float64
	left      []int
	right     []int
	proba     [][]float64 // leaf distributions, normalized at load
}

// Ensemble evaluates a random forest artifact. It is immutable after construction.
type Ensemble struct {
	info     Info
	classes  []string
	features []string
	trees    []tree
}

// NewEnsemble validates the artifact and prepares it for evaluation.
func NewEnsemble(a *artifact.Artifact) (*Ensemble, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	e := &Ensemble{
		info:     Info{Name: a.Name, Version: a.Version, EncodingVersion: a.EncodingVersion},
		classes:  append([]string(nil), a.Classes...),
		features: append([]string(nil), a.FeatureNames...),
		trees:    make([]tree, 0, len(a.Trees)),
	}

	for _, at := range a.Trees {
		t := tree{
			feature:   append([]int(nil), at.Feature...),
			threshold: append([]float64(nil), at.Threshold...),
			left:      append([]int(nil), at.ChildrenLeft...),
			right:     append([]int(nil), at.ChildrenRight...),
			proba:     make([][]float64, len(at.Value)),
		}
		for i, counts := range at.Value {
			if !at.IsLeaf(i) {
				continue
			}
			var sum float64
			for _, c := range counts {
				sum += c
			}
			p := make([]float64, len(counts))
			for k, c := range counts {
				p[k] = c / sum
			}
			t.proba[i] = p
		}
		e.trees = append(e.trees, t)
	}

	return e, nil
}

func (e *Ensemble) Info() Info { return e.info }

func (e *Ensemble) Classes() []string { return append([]string(nil), e.classes...) }

func (e *Ensemble) FeatureNames() []string { return append([]string(nil), e.features...) }

// PredictProba averages the leaf distributions of all trees.
func (e *Ensemble) PredictProba(x []float64) ([]float64, error) {
	if len(x) != len(e.features) {
		return nil, fmt.Errorf("expected %d features, got %d", len(e.features), len(x))
	}

	out := make([]float64, len(e.classes))
	for _, t := range e.trees {
		leaf := t.apply(x)
		for k, p := range t.proba[leaf] {
			out[k] += p
		}
	}

	n := float64(len(e.trees))
	for k := range out {
		out[k] /= n
	}
	return out, nil
}

func (t tree) apply(x []float64) int {
	node := 0
	for t.left[node] != artifact.LeafNode {
		if x[t.feature[node]] <= t.threshold[node] {
			node = t.left[node]
		} else {
			node = t.right[node]
		}
	}
	return node
}
