package utils

import (
	"encoding/json"
	"net/http"

	"github.com/zhouzirui/heartlog/backend/internal/logger"
)

type successBody struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log := logger.Component("http")
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// RespondData 以 {success:true, data} 信封发送响应
func RespondData(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, successBody{Success: true, Data: data})
}

// RespondError 以 {success:false, message} 信封发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, errorBody{Success: false, Message: message})
}
