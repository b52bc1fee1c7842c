package dataset

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meigma/arctool/internal/atomicfile"
)

// DateLayout is the layout of archive_date in descriptive metadata.
const DateLayout = time.DateOnly

// Owner is a person responsible for a dataset.
type Owner struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// DescriptiveMetadata is the content of README.yml.
//
// Fields are written in declaration order.
type DescriptiveMetadata struct {
	ProjectName     string  `yaml:"project_name"`
	DatasetName     string  `yaml:"dataset_name"`
	Confidential    bool    `yaml:"confidential"`
	PersonallyIdent bool    `yaml:"personally_identifiable_information"`
	Owners          []Owner `yaml:"owners"`
	ArchiveDate     string  `yaml:"archive_date"`
}

// Marshal encodes the metadata as a YAML document.
func (d DescriptiveMetadata) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("encode descriptive metadata: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode descriptive metadata: %w", err)
	}
	return buf.Bytes(), nil
}

// writeReadme writes d to path atomically.
func writeReadme(path string, d DescriptiveMetadata) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(path, data, 0o644)
}

// ParseReadme decodes README.yml content into a generic map.
// Empty content yields a nil map and no error.
func ParseReadme(data []byte) (map[string]any, error) {
	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode descriptive metadata: %w", err)
	}
	return out, nil
}

// ReadReadme reads and decodes the README.yml file at path.
func ReadReadme(path string) (map[string]any, error) {
	data, err := os.ReadFile(path) //nolint:gosec // caller-provided dataset path
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, path, err)
	}
	return ParseReadme(data)
}

// requiredKeys lists the descriptive metadata keys checked by
// ValidateDescriptive, in reporting order.
var requiredKeys = []string{
	"project_name",
	"dataset_name",
	"confidential",
	"personally_identifiable_information",
	"owners",
	"archive_date",
}

// Validation failure reasons.
const (
	ReasonEmpty             = "empty file"
	ReasonDateNotDate       = "archive_date is not a date"
	ReasonOwnersNotList     = "owners is not a list"
	ReasonOwnerMissingName  = "owner is missing a name"
	ReasonOwnerMissingEmail = "owner is missing an email"
)

// ValidationResult is the outcome of checking descriptive metadata.
type ValidationResult struct {
	Valid   bool
	Reasons []string
}

func (r *ValidationResult) fail(reason string) {
	r.Valid = false
	r.Reasons = append(r.Reasons, reason)
}

// ValidateDescriptive checks decoded descriptive metadata.
//
// Every required key must be present. archive_date must be a date, either
// decoded by YAML as a timestamp or a string in DateLayout. owners must be a
// list whose items each carry a name and an email. Reasons are reported in
// key order; at most one reason is reported per owner.
func ValidateDescriptive(data map[string]any) ValidationResult {
	res := ValidationResult{Valid: true}
	if len(data) == 0 {
		res.fail(ReasonEmpty)
		return res
	}

	for _, key := range requiredKeys {
		if _, ok := data[key]; !ok {
			res.fail("missing: " + key)
		}
	}
	if !res.Valid {
		return res
	}

	if !isDate(data["archive_date"]) {
		res.fail(ReasonDateNotDate)
	}

	owners, ok := data["owners"].([]any)
	if !ok {
		res.fail(ReasonOwnersNotList)
		return res
	}
	for _, item := range owners {
		owner, _ := item.(map[string]any)
		if !hasValue(owner, "name") {
			res.fail(ReasonOwnerMissingName)
		} else if !hasValue(owner, "email") {
			res.fail(ReasonOwnerMissingEmail)
		}
	}
	return res
}

// ValidateReadme decodes README.yml content and validates it.
// Undecodable YAML is reported as a reason rather than an error.
func ValidateReadme(data []byte) ValidationResult {
	if len(bytes.TrimSpace(data)) == 0 {
		return ValidationResult{Reasons: []string{ReasonEmpty}}
	}
	parsed, err := ParseReadme(data)
	if err != nil {
		return ValidationResult{Reasons: []string{err.Error()}}
	}
	return ValidateDescriptive(parsed)
}

func isDate(v any) bool {
	switch d := v.(type) {
	case time.Time:
		return true
	case string:
		_, err := time.Parse(DateLayout, d)
		return err == nil
	default:
		return false
	}
}

func hasValue(m map[string]any, key string) bool {
	v, ok := m[key]
	if !ok || v == nil {
		return false
	}
	s, isString := v.(string)
	return !isString || s != ""
}
