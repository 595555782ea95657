package streams

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// Definition pairs an event type and payload version with the JSON Schema
// its payloads must satisfy.
type Definition struct {
	EventType string
	Version   string
	Schema    []byte
}

// SchemaRegistry holds the compiled payload schema for every known event
// type and version. Both ends of the queue consult it: the gateway refuses
// to publish a payload that fails validation, the consumer acks and drops one.
type SchemaRegistry struct {
	mu       sync.RWMutex
	compiled map[string]*jsonschema.Schema
}

// NewSchemaRegistry returns an empty registry.
func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{compiled: make(map[string]*jsonschema.Schema)}
}

func schemaKey(eventType, version string) string {
	return eventType + "/" + version
}

// Register compiles def's schema under the 2020-12 dialect and stores it for
// def's event type and version. Registering the same key again replaces the
// previous schema.
func (r *SchemaRegistry) Register(def Definition) error {
	if def.EventType == "" || def.Version == "" {
		return fmt.Errorf("schema definition needs an event type and a version")
	}
	key := schemaKey(def.EventType, def.Version)
	if len(def.Schema) == 0 {
		return fmt.Errorf("schema definition for %s has no schema body", key)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(key+".json", bytes.NewReader(def.Schema)); err != nil {
		return fmt.Errorf("add schema %s: %w", key, err)
	}
	compiled, err := compiler.Compile(key + ".json")
	if err != nil {
		return fmt.Errorf("compile schema %s: %w", key, err)
	}

	r.mu.Lock()
	r.compiled[key] = compiled
	r.mu.Unlock()
	return nil
}

// Validate checks payload bytes against the schema registered for the event
// type and version.
func (r *SchemaRegistry) Validate(eventType, version string, payload []byte) error {
	key := schemaKey(eventType, version)

	r.mu.RLock()
	schema, ok := r.compiled[key]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no schema registered for %s", key)
	}

	if len(payload) == 0 {
		return fmt.Errorf("empty payload for %s", key)
	}
	var doc interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("payload for %s is not valid JSON: %w", key, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("payload for %s rejected: %w", key, err)
	}
	return nil
}
