package handlers

const (
	ErrInvalidJSONBody     = "Invalid or missing JSON body"
	ErrUnauthorized        = "Unauthorized"
	ErrInternalServerError = "Internal server error"
	ErrFamilyNotFound      = "Family not found"
	ErrIncorrectPIN        = "Incorrect PIN"
	ErrNoFamily            = "User has no associated family"
	ErrProfileNotFound     = "Profile not found"
	ErrRequestTimeout      = "Request timed out"

	maxBodyBytes = 1 << 20
)
