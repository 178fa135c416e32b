package ircbook

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"

	"github.com/bytedance/sonic"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// EnforceSectionIntegrity re-reads every written section file and checks
// that no OTHER accepted section id's heading shape appears inside its
// body: catching a heading the recognizer should have split out but
// instead swallowed into the preceding section. Grounded on
// enforce_section_integrity; it runs once, after every section has been
// written, as the last step before fallback-mode evaluation.
func EnforceSectionIntegrity(acceptedIDs []string, outDir string) error {
	headingRE := make(map[string]*regexp.Regexp, len(acceptedIDs))
	for _, id := range acceptedIDs {
		headingRE[id] = regexp.MustCompile(`(?mi)^\s*(?:SECTION\s+)?` + regexp.QuoteMeta(id) + `\s+[A-Z0-9]`)
	}

	for _, id := range acceptedIDs {
		path := filepath.Join(outDir, "section_"+sanitizeID(id)+".txt")
		data, err := os.ReadFile(path)
		if err != nil {
			continue // a still-open section has no file yet
		}
		body := data
		if i := bytes.Index(data, []byte("\n\n")); i >= 0 {
			body = data[i+2:]
		}
		for otherID, re := range headingRE {
			if otherID == id {
				continue
			}
			if re.Match(body) {
				return NewPipelineError(RuleSectionIntegrity, 0,
					"section_"+sanitizeID(id)+".txt contains the heading shape of section "+otherID, nil)
			}
		}
	}
	return nil
}

// tableJSONSchema is the shape every table_<ID>.json must satisfy before
// it is committed to disk: a labeled set of string columns and string
// matrix rows, stable across the table's lifetime.
const tableJSONSchema = `{
	"type": "object",
	"required": ["table_id", "columns", "rows"],
	"properties": {
		"table_id": {"type": "string"},
		"title": {"type": "string"},
		"columns": {"type": "array", "items": {"type": "string"}},
		"rows": {"type": "array", "items": {"type": "array", "items": {"type": "string"}}},
		"pdf_pages": {"type": "array", "items": {"type": "integer"}}
	}
}`

var compiledTableSchema *jsonschema.Schema

func compileTableSchema() (*jsonschema.Schema, error) {
	if compiledTableSchema != nil {
		return compiledTableSchema, nil
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("table.json", bytes.NewReader([]byte(tableJSONSchema))); err != nil {
		return nil, err
	}
	schema, err := c.Compile("table.json")
	if err != nil {
		return nil, err
	}
	compiledTableSchema = schema
	return schema, nil
}

// ValidateTableJSON checks a marshaled table document against
// tableJSONSchema before the integrity enforcer lets it be written,
// catching a malformed row/column shape before it reaches disk. The
// document is round-tripped through JSON first since jsonschema validates
// against the generic map/slice shapes produced by unmarshaling, not
// Go's concrete []string/[][]string types.
func ValidateTableJSON(doc any) error {
	schema, err := compileTableSchema()
	if err != nil {
		return err
	}
	data, err := sonic.Marshal(doc)
	if err != nil {
		return err
	}
	var generic any
	if err := sonic.Unmarshal(data, &generic); err != nil {
		return err
	}
	return schema.Validate(generic)
}
