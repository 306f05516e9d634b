package utils

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/senyabanana/tender-lifecycle/internal/models"
)

// SendErrorResponse отправляет ошибку в формате JSON
func SendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	SendJSON(w, statusCode, models.NewErrorResponse(statusCode, message))
}

// SendJSON отправляет тело ответа в формате JSON
func SendJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Println(err)
	}
}

// DecodeJSON разбирает тело запроса, неизвестные поля считаются ошибкой.
func DecodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

// ParseLimit обрабатывает limit
func ParseLimit(limitStr string) (int, error) {
	if limitStr == "" {
		return 50, nil
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 200 {
		return 0, fmt.Errorf("invalid limit parameter, must be a positive integer [1:200]")
	}
	return limit, nil
}
