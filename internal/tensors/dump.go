package tensors

import (
	"encoding/json"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
)

// ErrMissingTensor is returned when a dump lacks a named output.
var ErrMissingTensor = errors.New("missing tensor")

// LayerNames maps bundle fields to output names in a dump or model.
type LayerNames struct {
	Scores   string `mapstructure:"scores" yaml:"scores" json:"scores"`
	Geometry string `mapstructure:"geometry" yaml:"geometry" json:"geometry"`
	Angles   string `mapstructure:"angles" yaml:"angles" json:"angles"`
}

// DefaultEASTLayers returns the output names of the 256×256 EAST text detector.
func DefaultEASTLayers() LayerNames {
	return LayerNames{
		Scores:   "feature_fusion/Conv_7/Sigmoid",
		Geometry: "feature_fusion/mul_6",
		Angles:   "feature_fusion/sub/Fused_Add_",
	}
}

// Dump is a serialized set of network outputs: the named detection tensors
// and zero or more recognition outputs, one per crop.
type Dump struct {
	Tensors      map[string]Tensor `json:"tensors"`
	Sequences    []Tensor          `json:"sequences,omitempty"`
	ClassesFirst bool              `json:"classes_first,omitempty"`
}

// Names returns the tensor names in sorted order.
func (d Dump) Names() []string {
	names := make([]string, 0, len(d.Tensors))
	for k := range d.Tensors {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Detection resolves the detection bundle using the given layer names.
func (d Dump) Detection(names LayerNames) (DetectionBundle, error) {
	get := func(name string) (Tensor, error) {
		t, ok := d.Tensors[name]
		if !ok {
			return Tensor{}, errors.Wrapf(ErrMissingTensor, "%q (have %v)", name, d.Names())
		}
		return t, nil
	}
	scores, err := get(names.Scores)
	if err != nil {
		return DetectionBundle{}, err
	}
	geometry, err := get(names.Geometry)
	if err != nil {
		return DetectionBundle{}, err
	}
	angles, err := get(names.Angles)
	if err != nil {
		return DetectionBundle{}, err
	}
	return NewDetectionBundle(scores, geometry, angles)
}

// RecognitionSequences converts every recognition output to a T×C view.
func (d Dump) RecognitionSequences() ([]Sequence, error) {
	out := make([]Sequence, 0, len(d.Sequences))
	for i, t := range d.Sequences {
		s, err := NewSequence(t, d.ClassesFirst)
		if err != nil {
			return nil, errors.Wrapf(err, "sequence %d", i)
		}
		out = append(out, s)
	}
	return out, nil
}

// ReadDump decodes a dump from r.
func ReadDump(r io.Reader) (Dump, error) {
	var d Dump
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return Dump{}, errors.Wrap(err, "decode tensor dump")
	}
	for name, t := range d.Tensors {
		if err := t.Validate(); err != nil {
			return Dump{}, errors.Wrapf(err, "tensor %q", name)
		}
	}
	for i, t := range d.Sequences {
		if err := t.Validate(); err != nil {
			return Dump{}, errors.Wrapf(err, "sequence %d", i)
		}
	}
	return d, nil
}

// LoadDump reads a dump from a JSON file.
func LoadDump(path string) (Dump, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path supplied by the caller
	if err != nil {
		return Dump{}, errors.Wrap(err, "open tensor dump")
	}
	defer func() { _ = f.Close() }()
	return ReadDump(f)
}

// WriteDump encodes d as JSON to w.
func WriteDump(w io.Writer, d Dump) error {
	enc := json.NewEncoder(w)
	return errors.Wrap(enc.Encode(d), "encode tensor dump")
}

// SaveDump writes d to a JSON file.
func SaveDump(path string, d Dump) error {
	f, err := os.Create(path) //nolint:gosec // G304: path supplied by the caller
	if err != nil {
		return errors.Wrap(err, "create tensor dump")
	}
	if err := WriteDump(f, d); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "close tensor dump")
}
