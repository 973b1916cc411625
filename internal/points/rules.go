package points

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// RuleKey names a configured points rule.
type RuleKey string

const (
	RuleRecitationExcellent RuleKey = "recitation_excellent"
	RuleRecitationGood      RuleKey = "recitation_good"
	RuleRecitationPoor      RuleKey = "recitation_poor"
	RuleAttendancePresent   RuleKey = "attendance_present"
	RuleAttendanceLate      RuleKey = "attendance_late"
	RuleAttendanceAbsent    RuleKey = "attendance_absent"
	RuleExamPassed          RuleKey = "exam_passed"
	RuleExamFailed          RuleKey = "exam_failed"
)

var ruleKinds = map[RuleKey]SourceKind{
	RuleRecitationExcellent: SourceRecitation,
	RuleRecitationGood:      SourceRecitation,
	RuleRecitationPoor:      SourceRecitation,
	RuleAttendancePresent:   SourceAttendance,
	RuleAttendanceLate:      SourceAttendance,
	RuleAttendanceAbsent:    SourceAttendance,
	RuleExamPassed:          SourceExam,
	RuleExamFailed:          SourceExam,
}

// Kind returns the source kind transactions for k are tagged with.
func (k RuleKey) Kind() (SourceKind, bool) {
	kind, ok := ruleKinds[k]
	return kind, ok
}

// Rule maps a key to a points value. Inactive or zero-valued rules award nothing.
type Rule struct {
	Key    RuleKey `yaml:"key"`
	Points int     `yaml:"points"`
	Active bool    `yaml:"active"`
}

// Effective reports whether applying the rule changes a balance.
func (r Rule) Effective() bool {
	return r.Active && r.Points != 0
}

// Rules is the resolved rule table.
type Rules struct {
	byKey map[RuleKey]Rule
}

//go:embed rules.schema.json
var rulesSchema string

//go:embed rules.default.yaml
var defaultRules []byte

// DefaultRules returns the embedded rule table.
func DefaultRules() *Rules {
	r, err := ParseRules(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("embedded rules are invalid: %v", err))
	}
	return r
}

// LoadRules reads a YAML rule table. An empty path yields the defaults.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	r, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("loading rules %s: %w", path, err)
	}
	return r, nil
}

// ParseRules validates YAML rule contents against the rules schema and
// resolves them into a table. Keys absent from the file are inactive.
func ParseRules(data []byte) (*Rules, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	res, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(rulesSchema),
		gojsonschema.NewGoLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("validating rules: %w", err)
	}
	if !res.Valid() {
		return nil, fmt.Errorf("invalid rules: %v", res.Errors())
	}

	var f struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}

	r := &Rules{byKey: make(map[RuleKey]Rule, len(f.Rules))}
	for _, rule := range f.Rules {
		if _, dup := r.byKey[rule.Key]; dup {
			return nil, fmt.Errorf("rule %s defined twice", rule.Key)
		}
		r.byKey[rule.Key] = rule
	}
	return r, nil
}

// Lookup returns the rule for key. Known keys missing from the table come back
// inactive; unknown keys report false.
func (r *Rules) Lookup(key RuleKey) (Rule, bool) {
	if _, known := ruleKinds[key]; !known {
		return Rule{}, false
	}
	if rule, ok := r.byKey[key]; ok {
		return rule, true
	}
	return Rule{Key: key}, true
}
