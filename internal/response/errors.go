package response

import (
	"net/http"

	"github.com/stemsi/classroom-client/internal/apperr"
)

// ErrCode is a typed error code enum for consistent API error identification.
// Core codes come from apperr; the rest are raised by the HTTP edge only.
type ErrCode string

const (
	// ─── Configuration / Initialization ────────────────────────────────
	ErrConfigMissing       ErrCode = ErrCode(apperr.CodeConfigMissing)
	ErrUnknownDriver       ErrCode = ErrCode(apperr.CodeUnknownDriver)
	ErrInitFailed          ErrCode = ErrCode(apperr.CodeInitFailed)
	ErrIdentityUnavailable ErrCode = ErrCode(apperr.CodeIdentityUnavailable)
	ErrStorageUnavailable  ErrCode = ErrCode(apperr.CodeStorageUnavailable)

	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = ErrCode(apperr.CodeInvalidCredentials)
	ErrUnauthenticated    ErrCode = ErrCode(apperr.CodeUnauthenticated)
	ErrSessionExpired     ErrCode = ErrCode(apperr.CodeSessionExpired)
	ErrResetCodeInvalid   ErrCode = ErrCode(apperr.CodeResetCodeInvalid)
	ErrResetCodeExpired   ErrCode = ErrCode(apperr.CodeResetCodeExpired)
	ErrResetNotVerified   ErrCode = ErrCode(apperr.CodeResetNotVerified)
	ErrResetGrantInvalid  ErrCode = ErrCode(apperr.CodeResetGrantInvalid)
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = ErrCode(apperr.CodeValidation)
	ErrEmailTaken     ErrCode = ErrCode(apperr.CodeEmailTaken)
	ErrInvalidCursor  ErrCode = ErrCode(apperr.CodeBadCursor)
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound      ErrCode = ErrCode(apperr.CodeNotFound)
	ErrClassNotFound ErrCode = ErrCode(apperr.CodeClassNotFound)
	ErrUserNotFound  ErrCode = ErrCode(apperr.CodeUserNotFound)
	ErrForbidden     ErrCode = "FORBIDDEN"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = ErrCode(apperr.CodeInternal)
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Configuration / Initialization ────────────────────────────────
	case ErrConfigMissing:
		return "Falta la configuración del proveedor. Contacta al administrador."
	case ErrUnknownDriver:
		return "El proveedor configurado no es compatible."
	case ErrInitFailed:
		return "No se pudo inicializar la aplicación. Intenta de nuevo."
	case ErrIdentityUnavailable:
		return "El servicio de autenticación no está disponible."
	case ErrStorageUnavailable:
		return "El almacenamiento no está disponible por el momento. Algunas funciones están limitadas."

	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Correo o contraseña incorrectos."
	case ErrUnauthenticated:
		return "Debes iniciar sesión para continuar."
	case ErrSessionExpired:
		return "Tu sesión ha expirado. Inicia sesión nuevamente."
	case ErrResetCodeInvalid:
		return "El código de verificación es incorrecto."
	case ErrResetCodeExpired:
		return "El código de verificación ha expirado. Solicita uno nuevo."
	case ErrResetNotVerified:
		return "Primero verifica el código enviado a tu correo."
	case ErrResetGrantInvalid:
		return "La solicitud de recuperación ya no es válida."
	case ErrTokenRequired:
		return "Se requiere un token de sesión."
	case ErrTokenInvalid:
		return "El token de sesión no es válido."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "La validación falló. Revisa los datos ingresados."
	case ErrEmailTaken:
		return "El correo ya está registrado."
	case ErrInvalidCursor:
		return "El cursor de paginación no es válido."
	case ErrInvalidPayload:
		return "El cuerpo de la solicitud no es válido."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Recurso no encontrado."
	case ErrClassNotFound:
		return "La clase no existe."
	case ErrUserNotFound:
		return "El usuario no existe."
	case ErrForbidden:
		return "No tienes permiso para realizar esta acción."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Demasiadas solicitudes. Intenta de nuevo más tarde."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Ocurrió un error interno del servidor."
	default:
		return "Ocurrió un error inesperado."
	}
}

// StatusFor maps a core error onto its HTTP status and response code.
func StatusFor(err error) (int, ErrCode) {
	code := apperr.CodeOf(err)
	switch code {
	case apperr.CodeEmailTaken:
		return http.StatusConflict, ErrCode(code)
	case apperr.CodeResetCodeInvalid, apperr.CodeResetCodeExpired, apperr.CodeResetNotVerified, apperr.CodeResetGrantInvalid:
		return http.StatusBadRequest, ErrCode(code)
	}
	switch code.Kind() {
	case apperr.KindConfiguration, apperr.KindInitialization:
		return http.StatusServiceUnavailable, ErrCode(code)
	case apperr.KindAuthentication:
		return http.StatusUnauthorized, ErrCode(code)
	case apperr.KindNotFound:
		return http.StatusNotFound, ErrCode(code)
	case apperr.KindValidation:
		return http.StatusBadRequest, ErrCode(code)
	default:
		return http.StatusInternalServerError, ErrInternal
	}
}
