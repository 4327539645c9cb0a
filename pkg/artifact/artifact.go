// pkg/artifact/artifact.go
package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
)

// Load reads and validates an artifact file.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates an artifact document. Unknown keys are rejected so a
// typo in an exporter cannot silently drop a field.
func Parse(data []byte) (*Artifact, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var a Artifact
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Write stores the artifact as indented JSON.
func Write(path string, a *Artifact) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// Validate checks the structural invariants the evaluator relies on. Every child
// index points forward, so traversal always terminates.
func (a *Artifact) Validate() error {
	if a.FormatVersion != FormatVersion {
		return fmt.Errorf("unsupported format_version %q, want %q", a.FormatVersion, FormatVersion)
	}
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(a.Version) == "" {
		return fmt.Errorf("version is required")
	}
	if strings.TrimSpace(a.EncodingVersion) == "" {
		return fmt.Errorf("encoding_version is required")
	}
	if len(a.Classes) < 2 {
		return fmt.Errorf("at least two classes are required, got %d", len(a.Classes))
	}
	if err := checkUnique("classes", a.Classes); err != nil {
		return err
	}
	if len(a.FeatureNames) == 0 {
		return fmt.Errorf("feature_names is empty")
	}
	if err := checkUnique("feature_names", a.FeatureNames); err != nil {
		return err
	}
	if len(a.Trees) == 0 {
		return fmt.Errorf("artifact has no trees")
	}
	for i, t := range a.Trees {
		if err := t.validate(len(a.FeatureNames), len(a.Classes)); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func (t Tree) validate(features, classes int) error {
	n := len(t.Feature)
	if n == 0 {
		return fmt.Errorf("no nodes")
	}
	if len(t.Threshold) != n || len(t.ChildrenLeft) != n || len(t.ChildrenRight) != n || len(t.Value) != n {
		return fmt.Errorf("node arrays differ in length")
	}

	for i := 0; i < n; i++ {
		left, right := t.ChildrenLeft[i], t.ChildrenRight[i]
		if (left == LeafNode) != (right == LeafNode) {
			return fmt.Errorf("node %d has exactly one child", i)
		}
		if len(t.Value[i]) != classes {
			return fmt.Errorf("node %d has %d class values, want %d", i, len(t.Value[i]), classes)
		}

		if left == LeafNode {
			var sum float64
			for _, v := range t.Value[i] {
				if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
					return fmt.Errorf("leaf %d has invalid class value %v", i, v)
				}
				sum += v
			}
			if sum <= 0 {
				return fmt.Errorf("leaf %d has an empty class distribution", i)
			}
			continue
		}

		if left <= i || left >= n || right <= i || right >= n {
			return fmt.Errorf("node %d has child out of range", i)
		}
		if t.Feature[i] < 0 || t.Feature[i] >= features {
			return fmt.Errorf("node %d splits on unknown feature index %d", i, t.Feature[i])
		}
		if math.IsNaN(t.Threshold[i]) || math.IsInf(t.Threshold[i], 0) {
			return fmt.Errorf("node %d has non-finite threshold", i)
		}
	}
	return nil
}

func checkUnique(field string, values []string) error {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v == "" {
			return fmt.Errorf("%s contains an empty name", field)
		}
		if _, dup := seen[v]; dup {
			return fmt.Errorf("%s contains duplicate %q", field, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

// Describe summarizes a validated artifact.
func Describe(a *Artifact) Summary {
	s := Summary{
		Name:            a.Name,
		Version:         a.Version,
		EncodingVersion: a.EncodingVersion,
		Classes:         a.Classes,
		Features:        len(a.FeatureNames),
		Trees:           len(a.Trees),
	}
	for _, t := range a.Trees {
		s.Nodes += t.NodeCount()
		for i := 0; i < t.NodeCount(); i++ {
			if t.IsLeaf(i) {
				s.Leaves++
			}
		}
		if d := t.depth(); d > s.MaxDepth {
			s.MaxDepth = d
		}
	}
	return s
}

func (t Tree) depth() int {
	type frame struct{ node, depth int }
	stack := []frame{{0, 0}}
	deepest := 0
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.depth > deepest {
			deepest = f.depth
		}
		if !t.IsLeaf(f.node) {
			stack = append(stack, frame{t.ChildrenLeft[f.node], f.depth + 1}, frame{t.ChildrenRight[f.node], f.depth + 1})
		}
	}
	return deepest
}
