package enrichment

import (
	"encoding/json"
	"errors"
)

var errEmptyResponse = errors.New("empty response from completion API")

const emotionSystemPrompt = `Score the emotional content of the user's message.
Return a JSON object with the five document emotions, each scored 0 to 1:
anger, disgust, fear, joy, sadness.`

const entitySystemPrompt = `Extract named entities from the user's message.
Return a flat JSON object mapping entity type to the matched text, e.g.
{"City": "Dallas", "Person": "John"}. Use an empty object when nothing matches.`

// emotionJSONSchema defines the strict output schema for emotion scoring.
var emotionJSONSchema = &jsonSchema{
	Type: "object",
	Properties: map[string]*jsonSchema{
		"anger":   {Type: "number", Description: "Anger score 0-1"},
		"disgust": {Type: "number", Description: "Disgust score 0-1"},
		"fear":    {Type: "number", Description: "Fear score 0-1"},
		"joy":     {Type: "number", Description: "Joy score 0-1"},
		"sadness": {Type: "number", Description: "Sadness score 0-1"},
	},
	Required:             []string{"anger", "disgust", "fear", "joy", "sadness"},
	AdditionalProperties: false,
}

// jsonSchema implements json.Marshaler for the completion API's JSON Schema format.
type jsonSchema struct {
	Type                 string                 `json:"type"`
	Properties           map[string]*jsonSchema `json:"properties,omitempty"`
	Required             []string               `json:"required,omitempty"`
	Enum                 []string               `json:"enum,omitempty"`
	Description          string                 `json:"description,omitempty"`
	AdditionalProperties bool                   `json:"additionalProperties"`
}

func (s *jsonSchema) MarshalJSON() ([]byte, error) {
	type alias jsonSchema
	return json.Marshal((*alias)(s))
}
