package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/mcp-agent-inspector/inspector/session"
)

// SchemaValidator implements SignalValidator by compiling the JSON Schema
// that SchemaLookup returns for a session and validating the signal's
// payload against it. Grounded on registry/service.go's validatePayloadJSONAgainstSchema:
// unmarshal both documents to `any`, compile with jsonschema.NewCompiler,
// validate.
type SchemaValidator struct {
	// SchemaLookup returns the raw JSON Schema bytes registered for a
	// session, or nil if the session has none (validation is then skipped).
	SchemaLookup func(ctx context.Context, sessionID string) ([]byte, error)
}

// Validate implements gateway.SignalValidator.
func (v *SchemaValidator) Validate(ctx context.Context, sessionID string, payload any) error {
	if v.SchemaLookup == nil {
		return nil
	}
	schemaBytes, err := v.SchemaLookup(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		return err
	}
	if len(schemaBytes) == 0 {
		return nil
	}

	var schemaDoc any
	if err := json.Unmarshal(schemaBytes, &schemaDoc); err != nil {
		return fmt.Errorf("signal schema: %w", err)
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("signal payload: %w", err)
	}
	var payloadDoc any
	if err := json.Unmarshal(payloadBytes, &payloadDoc); err != nil {
		return fmt.Errorf("signal payload: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("signal-schema.json", schemaDoc); err != nil {
		return fmt.Errorf("signal schema: %w", err)
	}
	schema, err := c.Compile("signal-schema.json")
	if err != nil {
		return fmt.Errorf("signal schema: %w", err)
	}
	if err := schema.Validate(payloadDoc); err != nil {
		return err
	}
	return nil
}
