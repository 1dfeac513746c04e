package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/rally-session/rallyapi"
)

// Error bodies follow FastAPI, which the Rally backend is built on:
// {"detail": "..."} for plain errors and a list of field errors for 422.

type detailBody struct {
	Detail any `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, status, detailBody{Detail: detail})
}

func writeValidation(w http.ResponseWriter, fields ...rallyapi.FieldError) {
	writeJSON(w, http.StatusUnprocessableEntity, detailBody{Detail: fields})
}

func missingField(loc ...any) rallyapi.FieldError {
	return rallyapi.FieldError{Loc: loc, Msg: "Field required", Type: "missing"}
}
