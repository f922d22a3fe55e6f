package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
)

// maxBodyBytes caps control request bodies; they carry a single number.
const maxBodyBytes = 4 << 10

type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSON(w http.ResponseWriter, v any) { respond(w, http.StatusOK, v) }

func writeError(w http.ResponseWriter, status int, message string) {
	respond(w, status, errorBody{Error: message, Status: status})
}

func writeNoContent(w http.ResponseWriter) { w.WriteHeader(http.StatusNoContent) }

// allowMethod rejects anything but method with 405.
func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// decodeBody reads a bounded JSON body into v. An empty body leaves v as is.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
	return false
}

func parseUint(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) }
