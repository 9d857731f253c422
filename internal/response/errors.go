package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden ErrCode = "FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Quiz-specific ─────────────────────────────────────────────────
	ErrLoadFailed     ErrCode = "LOAD_FAILED"
	ErrNoQuestions    ErrCode = "NO_QUESTIONS"
	ErrOutOfRange     ErrCode = "OUT_OF_RANGE"
	ErrUnknownOption  ErrCode = "UNKNOWN_OPTION"
	ErrQuizIncomplete ErrCode = "QUIZ_INCOMPLETE"
	ErrQuizNotDone    ErrCode = "QUIZ_NOT_FINISHED"
	ErrTooManyQuizzes ErrCode = "TOO_MANY_QUIZZES"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have access to this resource."

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

	// ─── Quiz-specific ─────────────────────────────────────────────────
	case ErrLoadFailed:
		return "Failed to load questions. Please try again."
	case ErrNoQuestions:
		return "No questions found for the selected module(s)."
	case ErrOutOfRange:
		return "Question index is out of range."
	case ErrUnknownOption:
		return "Option does not belong to this question."
	case ErrQuizIncomplete:
		return "Answer every question before submitting."
	case ErrQuizNotDone:
		return "Results are available once the quiz is finished."
	case ErrTooManyQuizzes:
		return "Too many active quizzes. Finish or delete one first."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
