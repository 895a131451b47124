package kv

import "strings"

// Key namespaces. No namespace is a prefix of another.
const (
	EventPrefix       = "event:"
	CertificatePrefix = "cert:"
	VerifyPrefix      = "verify:"
	CodePrefix        = "code:"
	IdempotencyPrefix = "idem:"
	TakeoverPrefix    = "takeover:"
	UserPrefix        = "user:"
)

func EventKey(id string) string {
	return EventPrefix + id
}

// EventCertificatesPrefix scopes a scan to the certificates of one event.
// The trailing separator keeps event "ab" out of a scan for event "a".
func EventCertificatesPrefix(eventID string) string {
	return CertificatePrefix + eventID + ":"
}

func CertificateKey(eventID, certID string) string {
	return EventCertificatesPrefix(eventID) + certID
}

func VerifyKey(code string) string {
	return VerifyPrefix + code
}

func CodeKey(code string) string {
	return CodePrefix + code
}

func IdempotencyKey(eventID, token string) string {
	return IdempotencyPrefix + eventID + ":" + token
}

// TakeoverKey marks that the idempotency token of eventID, last bound to
// staleCertID, has been taken over. Only one caller can create it.
func TakeoverKey(eventID, token, staleCertID string) string {
	return TakeoverPrefix + eventID + ":" + staleCertID + ":" + token
}

// UserKey normalizes the email so lookups are case-insensitive.
func UserKey(email string) string {
	return UserPrefix + strings.ToLower(strings.TrimSpace(email))
}
