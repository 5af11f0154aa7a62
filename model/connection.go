package model

type ConnectionState string

const CONNECTION_DISCONNECTED ConnectionState = "disconnected"
const CONNECTION_CONNECTING ConnectionState = "connecting"
const CONNECTION_QR_CODE_NEEDED ConnectionState = "qr_code_needed"
const CONNECTION_CONNECTED ConnectionState = "connected"
const CONNECTION_AUTH_FAILURE ConnectionState = "auth_failure"
const CONNECTION_ERROR ConnectionState = "error"
const CONNECTION_LOGGED_OUT ConnectionState = "disconnected_logged_out"

// ConnectionStatus is the per-tenant connection record polled by the
// API layer. Only the connection manager mutates it.
type ConnectionStatus struct {
	Status    ConnectionState `json:"status"`
	QrCode    string          `json:"qrCode,omitempty"`
	Identity  string          `json:"identity,omitempty"`
	LastError string          `json:"lastError,omitempty"`
}
