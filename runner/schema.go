package runner

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// Schema describes the element and attribute names of one external test
// report format. The parser treats it as a versioned contract: anything that
// does not fit is reported as a ParseError.
type Schema struct {
	Name string `yaml:"name"`

	// WrapperElements may enclose the top-level suites, e.g. <testsuites>.
	WrapperElements []string `yaml:"wrapperElements"`
	SuiteElement    string   `yaml:"suiteElement"`
	CaseElement     string   `yaml:"caseElement"`
	NameAttr        string   `yaml:"nameAttr"`

	// ResultAttr, when set, is a required attribute of every case whose value
	// is looked up in Results. Unknown values map to an error status.
	ResultAttr string                      `yaml:"resultAttr"`
	Results    map[string]types.TestStatus `yaml:"results"`

	// StatusElements are case children that set the status by their presence,
	// e.g. <failure/> in JUnit reports. Their text becomes the case message.
	StatusElements map[string]types.TestStatus `yaml:"statusElements"`

	// MessageElements are case children whose text is collected into the
	// case message without touching the status.
	MessageElements []string `yaml:"messageElements"`
}

// BoostSchema matches the XML report of the Boost.Test framework
// (--report_format=XML --report_level=detailed). The XML log stream
// (--log_format=XML) carries no results and is not a report.
var BoostSchema = Schema{
	Name:            "boost",
	WrapperElements: []string{"TestResult"},
	SuiteElement:    "TestSuite",
	CaseElement:     "TestCase",
	NameAttr:        "name",
	ResultAttr:      "result",
	Results: map[string]types.TestStatus{
		"passed":  types.TestStatusPass,
		"failed":  types.TestStatusFail,
		"aborted": types.TestStatusError,
		"skipped": types.TestStatusSkip,
	},
	MessageElements: []string{"Error", "FatalError", "Exception", "Message"},
}

// JUnitSchema matches the widely used JUnit XML report layout.
var JUnitSchema = Schema{
	Name:            "junit",
	WrapperElements: []string{"testsuites"},
	SuiteElement:    "testsuite",
	CaseElement:     "testcase",
	NameAttr:        "name",
	StatusElements: map[string]types.TestStatus{
		"failure": types.TestStatusFail,
		"error":   types.TestStatusError,
		"skipped": types.TestStatusSkip,
	},
}

var presets = map[string]Schema{
	BoostSchema.Name: BoostSchema,
	JUnitSchema.Name: JUnitSchema,
}

// PresetNames lists the built-in schemas
func PresetNames() []string {
	return []string{BoostSchema.Name, JUnitSchema.Name}
}

// ResolveSchema returns the preset called nameOrPath, or loads a YAML schema
// file when no preset has that name.
func ResolveSchema(nameOrPath string) (Schema, error) {
	if s, ok := presets[strings.ToLower(nameOrPath)]; ok {
		return s, nil
	}
	return LoadSchema(nameOrPath)
}

// LoadSchema reads a schema from a YAML file.
func LoadSchema(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("failed to read report schema %s: %w", path, err)
	}
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("failed to parse report schema %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = path
	}
	if err := s.Validate(); err != nil {
		return Schema{}, fmt.Errorf("invalid report schema %s: %w", path, err)
	}
	return s, nil
}

// Validate checks that the schema can drive the parser.
func (s Schema) Validate() error {
	var errs []error
	if s.SuiteElement == "" {
		errs = append(errs, errors.New("suiteElement is required"))
	}
	if s.CaseElement == "" {
		errs = append(errs, errors.New("caseElement is required"))
	}
	if s.SuiteElement != "" && s.SuiteElement == s.CaseElement {
		errs = append(errs, errors.New("suiteElement and caseElement must differ"))
	}
	if s.NameAttr == "" {
		errs = append(errs, errors.New("nameAttr is required"))
	}
	if s.ResultAttr == "" && len(s.StatusElements) == 0 {
		errs = append(errs, errors.New("either resultAttr or statusElements must be set"))
	}
	for value, status := range s.Results {
		if !status.Valid() {
			errs = append(errs, fmt.Errorf("result %q maps to unknown status %q", value, status))
		}
	}
	for elem, status := range s.StatusElements {
		if !status.Valid() {
			errs = append(errs, fmt.Errorf("status element %q maps to unknown status %q", elem, status))
		}
	}
	return errors.Join(errs...)
}

func (s Schema) isWrapper(name string) bool {
	for _, w := range s.WrapperElements {
		if w == name {
			return true
		}
	}
	return false
}

func (s Schema) isMessage(name string) bool {
	for _, m := range s.MessageElements {
		if m == name {
			return true
		}
	}
	return false
}

// resultStatus maps a result attribute value. Matching ignores case and
// surrounding space.
func (s Schema) resultStatus(value string) (types.TestStatus, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	for k, status := range s.Results {
		if strings.ToLower(k) == v {
			return status, true
		}
	}
	return types.TestStatusError, false
}
