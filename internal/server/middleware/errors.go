package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/cabinetdiet/cabinet/internal/model"
)

// writeError writes the standard {"error": message} body. The handler
// package has its own copy; importing it here would create a cycle.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{Error: message})
}
