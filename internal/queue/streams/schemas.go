package streams

import "fmt"

// EventFileReady is published by the gateway when an uploaded file has been
// persisted and is ready for ingestion.
const EventFileReady = "file.ready"

// FileReadyPayload is the typed payload carried by file.ready events. It is
// shared by the gateway (producer) and the ingestion worker (consumer) so the
// job shape cannot silently drift between the two.
type FileReadyPayload struct {
	Filename string `json:"filename"`
	Source   string `json:"source"`
	Path     string `json:"path"`
}

var baseDefinitions = []Definition{
	{
		EventType: EventFileReady,
		Version:   "v1",
		Schema: []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["filename", "source", "path"],
  "properties": {
    "filename": {"type": "string", "minLength": 1},
    "source": {"type": "string", "minLength": 1},
    "path": {"type": "string", "minLength": 1}
  },
  "additionalProperties": false
}`),
	},
}

// RegisterBaseSchemas registers every built-in event schema on the registry.
func RegisterBaseSchemas(registry *SchemaRegistry) error {
	for _, def := range baseDefinitions {
		if err := registry.Register(def); err != nil {
			return fmt.Errorf("register schema %s/%s: %w", def.EventType, def.Version, err)
		}
	}
	return nil
}
