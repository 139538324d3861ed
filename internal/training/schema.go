package training

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidExport is returned when an imported document does not have the
// shape of an [Export].
var ErrInvalidExport = errors.New("training: invalid export document")

const exportSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["version", "trainingData", "accuracyStats"],
  "properties": {
    "version": { "type": "string" },
    "exportedAt": { "type": "string" },
    "trainingData": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["utterances"],
        "properties": {
          "trainedAt": { "type": "string" },
          "utterances": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["text"],
              "properties": {
                "text": { "type": "string", "minLength": 1 },
                "entities": { "type": ["object", "null"] },
                "timestamp": { "type": "string" }
              }
            }
          }
        }
      }
    },
    "accuracyStats": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "required": ["totalTests", "successfulTests", "averageConfidence"],
        "properties": {
          "totalTests": { "type": "integer", "minimum": 0 },
          "successfulTests": { "type": "integer", "minimum": 0 },
          "averageConfidence": { "type": "number", "minimum": 0, "maximum": 1 }
        }
      }
    }
  }
}`

var loadExportSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(exportSchema))
})

// ValidateExportJSON checks data against the export document schema. All
// violations are reported in one error wrapping [ErrInvalidExport].
func ValidateExportJSON(data []byte) error {
	schema, err := loadExportSchema()
	if err != nil {
		return fmt.Errorf("training: compile export schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidExport, err)
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			msgs[i] = desc.String()
		}
		return fmt.Errorf("%w: %s", ErrInvalidExport, strings.Join(msgs, "; "))
	}
	return nil
}
