package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden ErrCode = "FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Assessment sessions ───────────────────────────────────────────
	ErrAttemptExhausted        ErrCode = "ATTEMPT_EXHAUSTED"
	ErrSubmissionWindowClosed  ErrCode = "SUBMISSION_WINDOW_CLOSED"
	ErrAssessmentClosed        ErrCode = "ASSESSMENT_CLOSED"
	ErrSessionNotFound         ErrCode = "SESSION_NOT_FOUND"
	ErrSessionInProgress       ErrCode = "SESSION_IN_PROGRESS"
	ErrNoActiveDraft           ErrCode = "NO_ACTIVE_DRAFT"
	ErrSubmissionPersistFailed ErrCode = "SUBMISSION_PERSIST_FAILED"
	ErrInvalidAnswerShape      ErrCode = "INVALID_ANSWER_SHAPE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrSessionActive:
		return "You are already logged in on another device."
	case ErrSessionInvalidated:
		return "Your login session has ended. Please log in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."

	// ─── Assessment sessions ───────────────────────────────────────────
	case ErrAttemptExhausted:
		return "You have used all attempts for this assessment."
	case ErrSubmissionWindowClosed:
		return "The submission window for this assessment has closed."
	case ErrAssessmentClosed:
		return "This assessment is past due and no longer accepts new attempts."
	case ErrSessionNotFound:
		return "No active session was found."
	case ErrSessionInProgress:
		return "Another assessment session is already in progress."
	case ErrNoActiveDraft:
		return "There is no active draft to submit."
	case ErrSubmissionPersistFailed:
		return "Your submission was accepted but could not be stored yet. It will be recovered automatically."
	case ErrInvalidAnswerShape:
		return "The answer does not match the question type."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
