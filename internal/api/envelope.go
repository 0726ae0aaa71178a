package api

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// EnvelopeVersion is the version number carried in every response envelope.
const EnvelopeVersion = 1

// APIEnvelope wraps every successful response and plain error responses.
type APIEnvelope struct { //nolint:revive // API prefix is intentional for clarity
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// APIErrorEnvelope wraps errors that carry a machine-readable code.
type APIErrorEnvelope struct { //nolint:revive // API prefix is intentional for clarity
	Version   int    `json:"v"`
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	Retriable bool   `json:"retriable,omitempty"`
}

// EnvelopeTransformer is a huma transformer that wraps response bodies in the
// versioned envelope. Coded errors keep their code and details at the top level.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	switch body := v.(type) {
	case APIEnvelope, APIErrorEnvelope:
		return v, nil
	case *APIError:
		return APIErrorEnvelope{
			Version:   EnvelopeVersion,
			Success:   false,
			Error:     body.Message,
			Code:      body.Code,
			Message:   body.Message,
			Details:   body.Details,
			Retriable: body.Retriable,
		}, nil
	case error:
		return APIEnvelope{
			Version: EnvelopeVersion,
			Success: false,
			Error:   body.Error(),
		}, nil
	}

	return APIEnvelope{
		Version: EnvelopeVersion,
		Success: isSuccessStatus(status),
		Data:    v,
	}, nil
}

func isSuccessStatus(status string) bool {
	return strings.HasPrefix(status, "2") || strings.HasPrefix(status, "3")
}
