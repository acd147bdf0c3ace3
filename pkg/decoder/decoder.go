// Package decoder implements the structural "decode" stage of the pipeline
// (spec §2 "Decoder": line bytes → Entry ∈ {Tuple, Dict}). It knows nothing
// about field names or types — that's pkg/mapper's job; a decoder only
// turns one raw line into a flat tuple or a flat string-keyed dict.
//
// Grounded on the original Rust implementation's parse/decoder/{regex,json}
// split (src/parse/decoding/json.rs, src/decoder/regex.rs): one decoding
// strategy per input shape, selected by the program's decoder clause.
package decoder

import (
	"bytes"
	"fmt"
	"regexp"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry is one decoded line: either a positional Tuple or a named Dict.
// Exactly one of Tuple/Dict is non-nil, mirroring the original's
// Entry::Tuple/Entry::Dict enum.
type Entry struct {
	LineNo int
	Tuple  []string
	Dict   map[string]string
}

// IsTuple reports whether the entry was decoded positionally.
func (e Entry) IsTuple() bool { return e.Tuple != nil }

// IsDict reports whether the entry was decoded by field name.
func (e Entry) IsDict() bool { return e.Dict != nil }

// Decoder turns one raw line into a structural Entry.
type Decoder interface {
	Decode(lineNo int, line []byte) (Entry, error)
}

// RegexDecoder applies a single regular expression to each line and turns
// its capture groups (submatch indices 1..N, in order) into a Tuple entry.
// Grounded on src/decoder/regex.rs's regex.bytes.Regex usage, simplified:
// this stage only does structural decode, so captures are positional, not
// named — naming and typing happen in the mapper's field clauses
// (".0", ".1", ...) instead of baked into the regex itself.
type RegexDecoder struct {
	re *regexp.Regexp
}

// NewRegexDecoder compiles pattern. An error here is a program parse error
// (spec §7 "Program parse error").
func NewRegexDecoder(pattern string) (*RegexDecoder, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrap(err, "decoder: bad regex pattern")
	}
	return &RegexDecoder{re: re}, nil
}

func (d *RegexDecoder) Decode(lineNo int, line []byte) (Entry, error) {
	m := d.re.FindSubmatch(line)
	if m == nil {
		return Entry{}, fmt.Errorf("decoder: no match found")
	}
	tuple := make([]string, 0, len(m)-1)
	for _, g := range m[1:] {
		tuple = append(tuple, string(g))
	}
	return Entry{LineNo: lineNo, Tuple: tuple}, nil
}

// JSONDecoder decodes each line as a standalone JSON value. A top-level
// array becomes a Tuple entry, a top-level object becomes a Dict entry;
// anything else is a decode error. Nested non-scalar values are dropped,
// matching src/parse/decoding/json.rs's decode_tuple/decode_dict filtering.
type JSONDecoder struct{}

func NewJSONDecoder() *JSONDecoder { return &JSONDecoder{} }

func (d *JSONDecoder) Decode(lineNo int, line []byte) (Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return Entry{}, errors.Wrap(err, "decoder: JSON decoding failed")
	}

	switch vv := v.(type) {
	case []interface{}:
		tuple := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := scalarToString(item)
			if !ok {
				continue
			}
			tuple = append(tuple, s)
		}
		return Entry{LineNo: lineNo, Tuple: tuple}, nil

	case map[string]interface{}:
		dict := make(map[string]string, len(vv))
		for k, item := range vv {
			s, ok := scalarToString(item)
			if !ok {
				continue
			}
			dict[k] = s
		}
		return Entry{LineNo: lineNo, Dict: dict}, nil

	default:
		return Entry{}, fmt.Errorf("decoder: JSON decoder supports only flat arrays and objects")
	}
}

func scalarToString(v interface{}) (string, bool) {
	switch vv := v.(type) {
	case nil:
		return "null", true
	case bool:
		if vv {
			return "true", true
		}
		return "false", true
	case string:
		return vv, true
	case jsoniter.Number:
		return vv.String(), true
	default:
		return "", false
	}
}
