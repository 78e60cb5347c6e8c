// Package models - Label registry and output decoder selection.
package models

import (
	"bufio"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nvr-ai/go-detect/models/model"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Unknown is the name resolved for class ids outside the label set.
const Unknown = "unknown"

// LabelSource records where a label set came from.
type LabelSource string

const (
	// LabelSourceMetadata means the names were embedded in the model.
	LabelSourceMetadata LabelSource = "metadata"
	// LabelSourceFile means the names were read from a label file.
	LabelSourceFile LabelSource = "file"
	// LabelSourcePlaceholder means a built-in list was used.
	LabelSourcePlaceholder LabelSource = "placeholder"
)

// LabelSet maps class ids to names. It is read-only after construction.
type LabelSet struct {
	names  []string
	source LabelSource
}

// LabelOptions configures label set construction.
type LabelOptions struct {
	// Metadata holds names embedded in the model, possibly empty.
	Metadata []string
	// Path is an optional label file.
	Path string
	// Family selects the placeholder list.
	Family Family
	// Notify receives a single diagnostic when the placeholder list is used.
	Notify func(string)
}

// NewLabelSet builds the label set in order of preference: names embedded in the
// model, then the label file, then the placeholder list for the family. Falling back
// to the placeholder list emits one diagnostic through opts.Notify.
//
// Arguments:
//   - opts: The label sources.
//
// Returns:
//   - *LabelSet: The label set.
//   - error: A *model.LoadError if the label file was given but cannot be read, or the
//     placeholder family is unknown.
func NewLabelSet(opts LabelOptions) (*LabelSet, error) {
	notify := opts.Notify
	if notify == nil {
		notify = func(string) {}
	}

	if len(opts.Metadata) > 0 {
		return &LabelSet{names: opts.Metadata, source: LabelSourceMetadata}, nil
	}

	if opts.Path != "" {
		names, err := LoadLabelFile(opts.Path)
		if err != nil {
			return nil, &model.LoadError{Path: opts.Path, Op: "labels", Err: err}
		}
		if len(names) == 0 {
			notify("label file " + opts.Path + " contains no names")
		}
		return &LabelSet{names: names, source: LabelSourceFile}, nil
	}

	names, err := PlaceholderNames(opts.Family)
	if err != nil {
		return nil, &model.LoadError{Op: "labels", Err: err}
	}
	notify("model does not contain label metadata; provide a label file to replace the placeholder " +
		string(lo.Ternary(opts.Family == "", FamilyYOLO, opts.Family)) + " names")

	return &LabelSet{names: names, source: LabelSourcePlaceholder}, nil
}

// Resolve returns the name for a class id, or Unknown when the id has no name.
func (l *LabelSet) Resolve(id int) string {
	if id < 0 || id >= len(l.names) || l.names[id] == "" {
		return Unknown
	}
	return l.names[id]
}

// Len returns the number of ids covered by the set.
func (l *LabelSet) Len() int {
	return len(l.names)
}

// Source returns where the names came from.
func (l *LabelSet) Source() LabelSource {
	return l.source
}

// Names returns a copy of the names indexed by class id.
func (l *LabelSet) Names() []string {
	return append([]string(nil), l.names...)
}

// LoadLabelFile reads one name per line. A file holding a single line is split on
// commas, or on whitespace when it has no commas. Blank lines are skipped.
func LoadLabelFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening label file")
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading label file")
	}

	if len(lines) == 1 {
		var parts []string
		if strings.Contains(lines[0], ",") {
			parts = strings.Split(lines[0], ",")
		} else {
			parts = strings.Fields(lines[0])
		}
		lines = lo.FilterMap(parts, func(p string, _ int) (string, bool) {
			p = strings.TrimSpace(p)
			return p, p != ""
		})
	}

	return lines, nil
}

// dictEntry matches one `0: 'person'` pair of a Python dict literal.
var dictEntry = regexp.MustCompile(`(\d+)\s*:\s*['"]([^'"]*)['"]`)

// MaxClassID bounds the class ids accepted from model metadata.
const MaxClassID = 65535

// ParseNames decodes the class names embedded in model metadata. Two encodings are
// understood: YAML, either as a `names:` mapping or list or as a bare mapping or list
// (this covers the Python dict literal written by Ultralytics exporters,
// "{0: 'person', 1: 'bicycle'}"), and, for dict literals YAML rejects, a pairwise scan.
// Ids missing from a mapping resolve to Unknown.
//
// Arguments:
//   - raw: The metadata value.
//
// Returns:
//   - []string: The names indexed by class id, or nil if none were found or an id is
//     negative or above MaxClassID.
func ParseNames(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var doc struct {
		Names yaml.Node `yaml:"names"`
	}
	if err := yaml.Unmarshal([]byte(raw), &doc); err == nil && !doc.Names.IsZero() {
		return decodeNamesNode(&doc.Names)
	}

	var node yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &node); err == nil {
		if len(node.Content) == 0 {
			return nil
		}
		return decodeNamesNode(node.Content[0])
	}

	if !strings.HasPrefix(raw, "{") {
		return nil
	}
	matches := dictEntry.FindAllStringSubmatch(raw, -1)
	byID := make(map[int]string, len(matches))
	for _, m := range matches {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			return nil
		}
		byID[id] = m[2]
	}
	return denseNames(byID)
}

func decodeNamesNode(node *yaml.Node) []string {
	switch node.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return nil
		}
		return names
	case yaml.MappingNode:
		var byID map[int]string
		if err := node.Decode(&byID); err != nil {
			return nil
		}
		return denseNames(byID)
	}
	return nil
}

// denseNames turns an id->name mapping into a slice indexed by id.
func denseNames(byID map[int]string) []string {
	if len(byID) == 0 {
		return nil
	}

	ids := lo.Keys(byID)
	sort.Ints(ids)
	if ids[0] < 0 || ids[len(ids)-1] > MaxClassID {
		return nil
	}

	names := make([]string, ids[len(ids)-1]+1)
	for id, name := range byID {
		names[id] = name
	}
	return names
}
