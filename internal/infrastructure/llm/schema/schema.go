package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"
)

// Extraction is the payload shape the Extractor is asked to produce for one segment.
type Extraction struct {
	Summary    string   `json:"summary" jsonschema:"required,description=Two or three sentence summary of the segment"`
	Principles []string `json:"principles" jsonschema:"required,description=Foundational coaching principles stated or implied"`
	Strategies []string `json:"strategies" jsonschema:"required,description=Concrete strategies or techniques a coach can apply"`
	Insights   []string `json:"insights" jsonschema:"required,description=Observations about clients or the coaching process"`
	Guidance   []string `json:"guidance" jsonschema:"required,description=Direct advice phrased as an instruction"`
	Examples   []string `json:"examples" jsonschema:"required,description=Short illustrative cases or dialogue excerpts"`
}

const instructionsHeader = `Extract coaching knowledge from the content. ` +
	`Reply with exactly one JSON object and nothing else. The object must match this JSON schema:`

// Generate reflects T into a strict JSON schema map: every object property is
// required and additional properties are rejected.
func Generate[T any]() (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	s := reflector.Reflect(v)
	m, err := toMap(s)
	if err != nil {
		return nil, fmt.Errorf("schema to map: %w", err)
	}
	strict(m)
	return m, nil
}

// Instructions renders the extraction prompt with the embedded payload schema.
func Instructions() (string, error) {
	m, err := Generate[Extraction]()
	if err != nil {
		return "", err
	}
	delete(m, "$schema")
	delete(m, "$id")
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	return instructionsHeader + "\n" + string(raw), nil
}

func toMap(s *jsonschema.Schema) (map[string]any, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

const (
	propertiesKey           = "properties"
	additionalPropertiesKey = "additionalProperties"
	typeKey                 = "type"
	requiredKey             = "required"
	itemsKey                = "items"
)

func strict(s map[string]any) {
	if t, ok := s[typeKey].(string); ok && t == "object" {
		s[additionalPropertiesKey] = false
		if props, ok := s[propertiesKey].(map[string]any); ok && len(props) > 0 {
			required := make([]string, 0, len(props))
			for name := range props {
				required = append(required, name)
			}
			sort.Strings(required)
			s[requiredKey] = required
		}
	}
	if props, ok := s[propertiesKey].(map[string]any); ok {
		for _, p := range props {
			if pm, ok := p.(map[string]any); ok {
				strict(pm)
			}
		}
	}
	if items, ok := s[itemsKey].(map[string]any); ok {
		strict(items)
	}
}
