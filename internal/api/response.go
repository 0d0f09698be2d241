// Package api provides HTTP response utilities for DialogKit.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// fallbackErrorResponse is served when marshaling a response fails; kept as a
// literal so the error path never depends on the encoder that just failed.
var fallbackErrorResponse = []byte(`{"status":"error","message":"Internal server error"}`)

// writeJSONResponse writes a JSON response to the http.ResponseWriter with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	// Marshal before writing headers so encoding errors can still change the status
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}
