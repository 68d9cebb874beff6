package pull

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
)

// NoPathBucketPrefix starts the key of every bucket whose error text names no
// manifest or template file.
const NoPathBucketPrefix = "No-path-in-error-"

// problemFilePattern finds a manifest (.pp) path or an ERB template in an
// error message. Group 1 is the bucket key.
var problemFilePattern = regexp.MustCompile(`(\S*(/\S*\.pp|\.erb))`)

// ProblemFileIndex groups failed nodes by bucket, keeping buckets in the
// order they were first seen and nodes in the order they were added.
type ProblemFileIndex struct {
	keys  []string
	nodes map[string][]string
}

func NewProblemFileIndex() *ProblemFileIndex {
	return &ProblemFileIndex{nodes: make(map[string][]string)}
}

func (p *ProblemFileIndex) Add(bucket, node string) {
	if _, ok := p.nodes[bucket]; !ok {
		p.keys = append(p.keys, bucket)
	}
	p.nodes[bucket] = append(p.nodes[bucket], node)
}

func (p *ProblemFileIndex) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

func (p *ProblemFileIndex) Nodes(bucket string) []string {
	return p.nodes[bucket]
}

func (p *ProblemFileIndex) Len() int {
	return len(p.keys)
}

// ClassifyError returns the bucket key for a node's error text.
//
// Errors without a file reference are keyed by an MD5 of the text with the
// node name stripped, so one parameterized error hit by many nodes lands in
// one bucket.
func ClassifyError(node, errText string) string {
	if m := problemFilePattern.FindStringSubmatch(errText); m != nil {
		return m[1]
	}
	stripped := errText
	if node != "" {
		stripped = strings.ReplaceAll(errText, node, "")
	}
	sum := md5.Sum([]byte(stripped))
	return NoPathBucketPrefix + hex.EncodeToString(sum[:])
}

// ClassifyFailures buckets every failed node. Nodes are visited in ascending
// name order so bucket order and bucket contents do not depend on which
// worker recorded what first.
func ClassifyFailures(failed map[string]string) *ProblemFileIndex {
	nodes := make([]string, 0, len(failed))
	for n := range failed {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	idx := NewProblemFileIndex()
	for _, n := range nodes {
		idx.Add(ClassifyError(n, failed[n]), n)
	}
	return idx
}
