package handlers

const (
	ErrInvalidRequest      = "Invalid request"
	ErrInvalidFormData     = "Invalid form data"
	ErrUnauthorized        = "Unauthorized"
	ErrNotTeacherAccess    = "Teacher access required"
	ErrForbidden           = "Forbidden"
	ErrNotFound            = "Not found"
	ErrTooLarge            = "Audio file too large"
	ErrTooManyRequests     = "Too many uploads, try again later"
	ErrInternalServerError = "Internal server error"
)

const (
	defaultPracticeLimit  = 50
	maxPracticeLimit      = 200
	multipartMemoryBytes  = 8 << 20
	multipartOverheadSize = 1 << 20
)
