package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/docpipe/ai"
)

const extractionResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {
            "type": "string",
            "pattern": "^[a-z0-9]+( [a-z0-9]+)*$"
          },
          "type": {
            "type": "string"
          }
        },
        "required": ["name", "type"],
        "additionalProperties": false
      }
    },
    "relations": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "source": {
            "type": "string"
          },
          "target": {
            "type": "string"
          },
          "type": {
            "type": "string"
          }
        },
        "required": ["source", "target", "type"],
        "additionalProperties": false
      }
    }
  },
  "required": ["entities", "relations"],
  "additionalProperties": false
}`

const extractionPromptTemplate = `Extract the entities mentioned in the given text and the relations between them, and return them as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Entity names must be lowercase, 1-3 words, singular form only.
- Entity type must match exactly one of the listed values: %s.
- Relation type must match exactly one of the listed values: %s.
- Relation source and target must exactly match the name of an entity in the entities array.
- Include only entities and relations that are explicitly stated or clearly implied by the text. Do not hallucinate.
- If nothing can be identified, return "entities": [] and "relations": [].
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.



Example:
Input: "Aspirin is commonly used to treat headaches and reduce fever."
Output:
{
  "entities": [
    {"name":"aspirin","type":"drug"},
    {"name":"headache","type":"condition"},
    {"name":"fever","type":"symptom"}
  ],
  "relations": [
    {"source":"aspirin","target":"headache","type":"treats"},
    {"source":"aspirin","target":"fever","type":"treats"}
  ]
}

Example (entities only, no clear relations):
Input: "The report was filed in Geneva last spring."
Output:
{
  "entities": [
    {"name":"report","type":"document"},
    {"name":"geneva","type":"place"}
  ],
  "relations": [
    {"source":"report","target":"geneva","type":"located_in"}
  ]
}

Example (nothing extractable):
Input: "ok thanks bye"
Output:
{
  "entities": [],
  "relations": []
}`

// buildExtractionPrompt creates the system prompt with entity and relation
// types embedded.
func buildExtractionPrompt() string {
	return fmt.Sprintf(extractionPromptTemplate,
		extractionResponseSchema,
		strings.Join(ai.EntityTypes, ", "),
		strings.Join(ai.RelationTypes, ", "))
}
