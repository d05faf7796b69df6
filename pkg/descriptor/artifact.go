package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Rule node types of a generated grammar.json.
const (
	ruleBlank          = "BLANK"
	ruleString         = "STRING"
	rulePattern        = "PATTERN"
	ruleSymbol         = "SYMBOL"
	ruleSeq            = "SEQ"
	ruleChoice         = "CHOICE"
	ruleRepeat         = "REPEAT"
	ruleRepeat1        = "REPEAT1"
	ruleToken          = "TOKEN"
	ruleImmediateToken = "IMMEDIATE_TOKEN"
	ruleField          = "FIELD"
	ruleAlias          = "ALIAS"
	rulePrec           = "PREC"
	rulePrecLeft       = "PREC_LEFT"
	rulePrecRight      = "PREC_RIGHT"
	rulePrecDynamic    = "PREC_DYNAMIC"
)

type rule struct {
	Type    string          `json:"type"`
	Name    string          `json:"name,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`
	Named   bool            `json:"named,omitempty"`
	Flags   string          `json:"flags,omitempty"`
	Content *rule           `json:"content,omitempty"`
	Members []rule          `json:"members,omitempty"`
}

type namedRule struct {
	name string
	body rule
}

// orderedRules keeps the declaration order of the "rules" object; the first
// rule is the start rule.
type orderedRules []namedRule

func (o *orderedRules) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("rules must be a JSON object")
	}

	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected rule key %v", tok)
		}
		if seen[name] {
			return fmt.Errorf("duplicate rule %q", name)
		}
		seen[name] = true

		var body rule
		if err := dec.Decode(&body); err != nil {
			return fmt.Errorf("rule %q: %w", name, err)
		}
		*o = append(*o, namedRule{name: name, body: body})
	}

	_, err = dec.Token()
	return err
}

type artifact struct {
	Name        string       `json:"name"`
	Word        string       `json:"word,omitempty"`
	Rules       orderedRules `json:"rules"`
	Extras      []rule       `json:"extras"`
	Conflicts   [][]string   `json:"conflicts"`
	Precedences [][]rule     `json:"precedences"`
	Externals   []rule       `json:"externals"`
	Inline      []string     `json:"inline"`
	Supertypes  []string     `json:"supertypes"`
}

func decodeArtifact(data []byte) (*artifact, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("grammar artifact is empty")
	}
	var art artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("decode grammar artifact: %w", err)
	}
	return &art, nil
}

func (r *rule) stringValue() (string, error) {
	var s string
	if err := json.Unmarshal(r.Value, &s); err != nil {
		return "", fmt.Errorf("%s rule value must be a string", r.Type)
	}
	return s, nil
}

// precedence returns either a numeric level or a named level.
func (r *rule) precedence() (int, string, error) {
	if len(r.Value) == 0 {
		return 0, "", nil
	}
	var n int
	if err := json.Unmarshal(r.Value, &n); err == nil {
		return n, "", nil
	}
	var name string
	if err := json.Unmarshal(r.Value, &name); err == nil {
		return 0, name, nil
	}
	return 0, "", fmt.Errorf("%s rule value must be an integer or a precedence name", r.Type)
}

// isLexical reports whether a rule body is a single token, so the rule itself
// becomes a named terminal.
func (r *rule) isLexical() bool {
	switch r.Type {
	case ruleString, rulePattern, ruleToken, ruleImmediateToken:
		return true
	case rulePrec, rulePrecLeft, rulePrecRight, rulePrecDynamic:
		return r.Content != nil && r.Content.isLexical()
	}
	return false
}
