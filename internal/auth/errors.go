package auth

import (
	"context"
	"errors"
	"net"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// Error codes reported to clients. They keep the names used by the mobile
// app so its error handling does not change.
const (
	CodeEmailInUse        = "email-already-in-use"
	CodeInvalidEmail      = "invalid-email"
	CodeWeakPassword      = "weak-password"
	CodeNetwork           = "network-request-failed"
	CodeUserNotFound      = "user-not-found"
	CodeWrongPassword     = "wrong-password"
	CodeInvalidCredential = "invalid-credential"
	CodeUserDisabled      = "user-disabled"
	CodeTooManyRequests   = "too-many-requests"
	CodeUnknown           = "unknown"
)

var messages = map[string]string{
	CodeEmailInUse:        "Cet email est déjà enregistré",
	CodeInvalidEmail:      "Adresse email invalide",
	CodeWeakPassword:      "Le mot de passe doit contenir au moins 6 caractères",
	CodeNetwork:           "Erreur réseau. Vérifiez votre connexion",
	CodeUserNotFound:      "Aucun compte trouvé avec cet email",
	CodeWrongPassword:     "Email ou mot de passe incorrect",
	CodeInvalidCredential: "Email ou mot de passe incorrect",
	CodeUserDisabled:      "Ce compte a été désactivé",
	CodeTooManyRequests:   "Trop de tentatives échouées. Réessayez plus tard",
}

var (
	ErrAccountExists   = errors.New("account already exists")
	ErrAccountNotFound = errors.New("account not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidToken    = errors.New("invalid token")
)

// msgProfileNotSaved is reported when the account exists but users/{uid}
// could not be written.
const msgProfileNotSaved = "Account created but failed to save user data"

// Error is a classified authentication failure.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func newError(code string, err error) *Error {
	return &Error{Code: code, Message: messages[code], Err: err}
}

// Classify maps backend failures onto the client error codes. Failures that
// match no code keep their own message under CodeUnknown.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, ErrAccountExists):
		return newError(CodeEmailInUse, err)
	case errors.Is(err, ErrAccountNotFound):
		return newError(CodeUserNotFound, err)
	case isNetwork(err):
		return newError(CodeNetwork, err)
	}
	return &Error{Code: CodeUnknown, Message: err.Error(), Err: err}
}

func isNetwork(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}
	if errors.Is(err, redis.ErrClosed) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
