package llm

import (
	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

var classificationFormat = &openai.ChatCompletionResponseFormat{
	Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
	JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
		Name: "IsMeetingRequest",
		Schema: &jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"is_meeting_request": {
					Type:        jsonschema.Boolean,
					Description: "Whether the message contains a meeting request",
				},
			},
			Required: []string{"is_meeting_request"},
		},
	},
}

// Optional fields are left out of Required; the model omits or nulls them.
var detailsFormat = &openai.ChatCompletionResponseFormat{
	Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
	JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
		Name: "MeetingDetails",
		Schema: &jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"summary":    {Type: jsonschema.String, Description: "The meeting name, if any"},
				"agenda":     {Type: jsonschema.String, Description: "The agenda of the meeting, if any"},
				"date":       {Type: jsonschema.String, Description: "The date of the meeting, if any"},
				"start_time": {Type: jsonschema.String, Description: "The time of the meeting, if any"},
				"duration":   {Type: jsonschema.Integer, Description: "The length of the meeting in minutes, if any"},
				"location":   {Type: jsonschema.String, Description: "The location of the meeting, if any"},
				"timezone":   {Type: jsonschema.String, Description: "The IANA time zone of the meeting, if any"},
				"attendees": {
					Type:        jsonschema.Array,
					Description: "List of attendees email addresses",
					Items:       &jsonschema.Definition{Type: jsonschema.String},
				},
			},
			Required: []string{"attendees"},
		},
	},
}
