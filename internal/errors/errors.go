package errors

import "fmt"

// ErrorCode identifies a Cubby error category.
type ErrorCode string

const (
	ErrDuplicateUser ErrorCode = "DUPLICATE_USER"
	ErrUnknownUser   ErrorCode = "UNKNOWN_USER"
	ErrWrongSecret   ErrorCode = "WRONG_SECRET"
	ErrNotLoggedIn   ErrorCode = "NOT_LOGGED_IN"
	ErrDirNotFound   ErrorCode = "DIR_NOT_FOUND"
	ErrAlreadyAtRoot ErrorCode = "ALREADY_AT_ROOT"
	ErrFolderExists  ErrorCode = "FOLDER_EXISTS"
	ErrFileNotFound  ErrorCode = "FILE_NOT_FOUND"
	ErrNoFileOpen    ErrorCode = "NO_FILE_OPEN"
	ErrInvalidName   ErrorCode = "INVALID_NAME"
	ErrBadRequest    ErrorCode = "BAD_REQUEST"
	ErrInternal      ErrorCode = "INTERNAL"
)

// CubbyError is a structured error with a machine-checkable code and the
// exact message shown to the client. Rendering to the wire format happens
// only at the session dispatch boundary.
type CubbyError struct {
	Code    ErrorCode
	Message string
}

// Error implements the error interface.
func (e *CubbyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewDuplicateUser is returned when registering a username that already exists.
func NewDuplicateUser() *CubbyError {
	return &CubbyError{
		Code:    ErrDuplicateUser,
		Message: "Username already taken",
	}
}

// NewUnknownUser is returned when no credential record matches the username.
func NewUnknownUser() *CubbyError {
	return &CubbyError{
		Code:    ErrUnknownUser,
		Message: "User does not exist",
	}
}

// NewWrongSecret is returned when the supplied password does not match.
func NewWrongSecret() *CubbyError {
	return &CubbyError{
		Code:    ErrWrongSecret,
		Message: "Incorrect password",
	}
}

// NewNotLoggedIn is returned by the auth guard on commands that require a session user.
func NewNotLoggedIn() *CubbyError {
	return &CubbyError{
		Code:    ErrNotLoggedIn,
		Message: "You need to login before using this command",
	}
}

// NewDirNotFound is returned by change_folder for a missing target.
func NewDirNotFound() *CubbyError {
	return &CubbyError{
		Code:    ErrDirNotFound,
		Message: "Directory does not exist",
	}
}

// NewAlreadyAtRoot is returned by change_folder ".." at the sandbox root.
func NewAlreadyAtRoot() *CubbyError {
	return &CubbyError{
		Code:    ErrAlreadyAtRoot,
		Message: "Already in root",
	}
}

// NewFolderExists is returned by create_folder when the target path exists.
func NewFolderExists() *CubbyError {
	return &CubbyError{
		Code:    ErrFolderExists,
		Message: "Folder already exists",
	}
}

// NewFileNotFound is returned by read_file for a missing file.
func NewFileNotFound() *CubbyError {
	return &CubbyError{
		Code:    ErrFileNotFound,
		Message: "File does not exist",
	}
}

// NewNoFileOpen is returned when closing the read cursor with no file open.
func NewNoFileOpen() *CubbyError {
	return &CubbyError{
		Code:    ErrNoFileOpen,
		Message: "No file open",
	}
}

// NewInvalidName is returned for a file or folder name that is not a
// single plain path segment. Names carrying separators or dot segments
// could resolve outside the sandbox root.
func NewInvalidName() *CubbyError {
	return &CubbyError{
		Code:    ErrInvalidName,
		Message: "Invalid name",
	}
}

// NewBadRequest is returned for a malformed request: an unknown command
// name or missing required arguments.
func NewBadRequest(message string) *CubbyError {
	return &CubbyError{
		Code:    ErrBadRequest,
		Message: message,
	}
}

// NewInternal wraps an unexpected error.
func NewInternal(err error) *CubbyError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &CubbyError{
		Code:    ErrInternal,
		Message: msg,
	}
}

// Is checks if an error is a CubbyError with the given code.
func Is(err error, code ErrorCode) bool {
	if cErr, ok := err.(*CubbyError); ok {
		return cErr.Code == code
	}
	return false
}
