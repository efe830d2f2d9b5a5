package plan

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wonny/stratplan/internal/contracts"
)

// Load reads a strategic plan from a JSON or YAML file and returns the raw
// bytes alongside it. JSON is read through the YAML decoder, which accepts
// it as a subset. Unknown fields fail the load so a typo in the plan cannot
// silently drop a target.
func Load(path string) (*contracts.StrategicPlan, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read plan %s: %w", path, err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, data, fmt.Errorf("parse plan %s: %w", path, err)
	}
	return p, data, nil
}

// Parse decodes and validates a plan document
func Parse(data []byte) (*contracts.StrategicPlan, error) {
	var p contracts.StrategicPlan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}

	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Hash returns the SHA256 of the plan's canonical JSON. Struct field order
// keeps the encoding deterministic.
func Hash(p *contracts.StrategicPlan) (string, error) {
	jsonBytes, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
