// Package v1 defines the wire contract of the admin notification channel.
//
// Every frame is a single JSON object with a "type" discriminator. The server
// only ever pushes; inbound frames are acknowledged with MESSAGE_RECEIVED.
package v1

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Subprotocol is offered during the upgrade. Clients that do not request it are still accepted.
const Subprotocol = "warden.notify.v1"

// Frame types (wire-stable).
const (
	TypeConnectionSuccess  = "CONNECTION_SUCCESS"
	TypeForcedLogoutNotice = "FORCED_LOGOUT_NOTICE"
	TypeAdminNotice        = "ADMIN_NOTICE"
	TypeMessageReceived    = "MESSAGE_RECEIVED"
	TypeError              = "ERROR"
)

// ConnectedMessage is the text sent with CONNECTION_SUCCESS.
const ConnectedMessage = "Admin notification channel connected."

// Frame is the minimal shape shared by all frames; use it to dispatch on Type.
type Frame struct {
	Type string `json:"type"`
}

// ConnectionSuccess is sent once, right after the upgrade.
type ConnectionSuccess struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// LoginDetails describes the login that caused a takeover.
type LoginDetails struct {
	IPAddress string `json:"ipAddress"`
	UserAgent string `json:"userAgent"`
	Message   string `json:"message"`
}

// ForcedLogoutNotice tells the previous session that a newer login replaced it.
// Timestamp is RFC3339.
type ForcedLogoutNotice struct {
	Type            string       `json:"type"`
	Timestamp       string       `json:"timestamp"`
	NewLoginDetails LoginDetails `json:"newLoginDetails"`
}

// AdminNotice is a text notice an administrator sends to every console.
type AdminNotice struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	From      string `json:"from"`
	Message   string `json:"message"`
}

// MessageReceived echoes an inbound frame.
type MessageReceived struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Error reports a rejected inbound frame.
type Error struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewConnectionSuccess builds the greeting frame.
func NewConnectionSuccess() ConnectionSuccess {
	return ConnectionSuccess{Type: TypeConnectionSuccess, Message: ConnectedMessage}
}

// NewForcedLogoutNotice builds a takeover notice for a login at "at".
func NewForcedLogoutNotice(at time.Time, ip, userAgent string) ForcedLogoutNotice {
	return ForcedLogoutNotice{
		Type:      TypeForcedLogoutNotice,
		Timestamp: at.UTC().Format(time.RFC3339),
		NewLoginDetails: LoginDetails{
			IPAddress: ip,
			UserAgent: userAgent,
			Message:   "A new login was detected from another device. This session has been signed out.",
		},
	}
}

// NewAdminNotice builds a broadcast notice sent at "at" by from.
func NewAdminNotice(at time.Time, from, message string) AdminNotice {
	return AdminNotice{
		Type:      TypeAdminNotice,
		Timestamp: at.UTC().Format(time.RFC3339),
		From:      from,
		Message:   message,
	}
}

// NewMessageReceived wraps raw; raw must be valid JSON.
func NewMessageReceived(raw []byte) (MessageReceived, error) {
	if !json.Valid(raw) {
		return MessageReceived{}, errors.New("payload is not valid JSON")
	}
	return MessageReceived{Type: TypeMessageReceived, Payload: json.RawMessage(raw)}, nil
}

// NewError builds an error frame.
func NewError(code, msg string) Error {
	return Error{Type: TypeError, Code: code, Message: msg}
}

// Encode marshals any frame of this package.
func Encode(frame any) ([]byte, error) {
	return json.Marshal(frame)
}

// PeekType returns the type discriminator of a raw frame.
func PeekType(raw []byte) (string, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", err
	}
	t := strings.TrimSpace(f.Type)
	if t == "" {
		return "", errors.New("missing type")
	}
	return t, nil
}
