package connection

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/apperr"
)

// payload is the JSON document carried by a doctor's QR code.
type payload struct {
	DoctorID string `json:"doctorId"`
}

// EncodePayload renders the QR text for a doctor.
func EncodePayload(doctorID uuid.UUID) string {
	b, _ := json.Marshal(payload{DoctorID: doctorID.String()})
	return string(b)
}

// DecodePayload extracts the doctor id from QR text. Extra fields are
// ignored.
func DecodePayload(text string) (string, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &doc); err != nil || doc == nil {
		return "", apperr.New(apperr.KindMalformedPayload, "invalid QR code")
	}
	raw, ok := doc["doctorId"]
	if !ok {
		return "", apperr.New(apperr.KindMalformedPayload, "invalid QR code: missing doctorId")
	}
	id, ok := raw.(string)
	if !ok || strings.TrimSpace(id) == "" {
		return "", apperr.New(apperr.KindMalformedPayload, "invalid QR code: doctorId must be a non-empty string")
	}
	return strings.TrimSpace(id), nil
}
