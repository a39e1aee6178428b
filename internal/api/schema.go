package api

import (
	"bytes"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const sendRequestSchemaURL = "send_message.schema.json"

const sendRequestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["to", "body"],
  "properties": {
    "to":   {"type": "string", "minLength": 1, "pattern": "\\S"},
    "body": {"type": "string", "minLength": 1, "pattern": "\\S"}
  }
}`

var sendSchema = mustCompile(sendRequestSchemaURL, sendRequestSchema)

func mustCompile(url, schema string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schema))
	if err != nil {
		panic(err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		panic(err)
	}
	return c.MustCompile(url)
}

func validateSendRequest(raw []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return err
	}
	return sendSchema.Validate(inst)
}
