// pkg/artifact/schema.go
package artifact

// FormatVersion is the artifact layout this package reads and writes.
const FormatVersion = "rf-json/1"

// LeafNode marks a missing child in ChildrenLeft/ChildrenRight.
const LeafNode = -1

// Artifact is a serialized random forest classifier. Trees use the flat array layout
// of scikit-learn's tree_ attribute so exports need no reshaping.
type Artifact struct {
	FormatVersion   string   `json:"format_version"`
	Name            string   `json:"name"`
	Version         string   `json:"version"`
	EncodingVersion string   `json:"encoding_version"`
	CreatedAt       string   `json:"created_at,omitempty"`
	Description     string   `json:"description,omitempty"`
	Classes         []string `json:"classes"`
	FeatureNames    []string `json:"feature_names"`
	Trees           []Tree   `json:"trees"`
}

// Tree is one decision tree. Node i splits on FeatureNames[Feature[i]] and goes left
// when x <= Threshold[i]. Value[i] holds per-class sample counts or weights.
type Tree struct {
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Value         [][]float64 `json:"value"`
}

// NodeCount returns the number of nodes in the tree.
func (t Tree) NodeCount() int {
	return len(t.Feature)
}

// IsLeaf reports whether node i has no children.
func (t Tree) IsLeaf(i int) bool {
	return t.ChildrenLeft[i] == LeafNode
}

// Summary is the human readable description printed by model-tool describe.
type Summary struct {
	Name            string   `json:"name"`
	Version         string   `json:"version"`
	EncodingVersion string   `json:"encodingVersion"`
	Classes         []string `json:"classes"`
	Features        int      `json:"features"`
	Trees           int      `json:"trees"`
	Nodes           int      `json:"nodes"`
	Leaves          int      `json:"leaves"`
	MaxDepth        int      `json:"maxDepth"`
}
