// internal/app/system/apijson/apijson.go

// Package apijson writes the JSON envelopes shared by every feature.
// Error responses always carry a machine-readable code and, where a
// business rule names offenders, the offending IDs, so callers can retry
// with a corrected set.
package apijson

import (
	"encoding/json"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error codes. The HTTP status carries the transport semantics; the code
// carries the business semantics.
const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeNotFound              = "NOT_FOUND"
	CodeAlreadyEnrolled       = "ALREADY_ENROLLED"
	CodeCapacityExceeded      = "CAPACITY_EXCEEDED"
	CodeConflict              = "CONFLICT"
	CodeStudentAlreadyGrouped = "STUDENT_ALREADY_GROUPED"
	CodeDuplicateGroupName    = "DUPLICATE_GROUP_NAME"
	CodeInvalidMentor         = "INVALID_MENTOR"
	CodeInternal              = "INTERNAL"
)

// ErrorBody is the payload under the "error" key.
type ErrorBody struct {
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	StudentIDs []string `json:"studentIds,omitempty"`
	MentorIDs  []string `json:"mentorIds,omitempty"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// OK writes v as a JSON response with the given status.
func OK(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// NoContent writes an empty 204 response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes the error envelope with the given HTTP status and code.
func Error(w http.ResponseWriter, status int, code, message string) {
	ErrorWithIDs(w, status, code, message, nil, nil)
}

// ErrorWithIDs writes the error envelope naming the offending student
// and/or mentor IDs.
func ErrorWithIDs(w http.ResponseWriter, status int, code, message string, studentIDs, mentorIDs []primitive.ObjectID) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: ErrorBody{
		Code:       code,
		Message:    message,
		StudentIDs: hexAll(studentIDs),
		MentorIDs:  hexAll(mentorIDs),
	}})
}

// Validation writes a 400 VALIDATION_ERROR.
func Validation(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, CodeValidation, message)
}

// NotFound writes a 404 NOT_FOUND.
func NotFound(w http.ResponseWriter, message string) {
	Error(w, http.StatusNotFound, CodeNotFound, message)
}

// Internal writes a 500 INTERNAL. The real error goes to the log, not the
// client.
func Internal(w http.ResponseWriter) {
	Error(w, http.StatusInternalServerError, CodeInternal, "internal error")
}

// Decode reads the request body as JSON into dst. Unknown fields are
// rejected so typos surface as validation errors instead of silent drops.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func hexAll(ids []primitive.ObjectID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Hex())
	}
	return out
}
