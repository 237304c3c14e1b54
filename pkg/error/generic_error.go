package error

// GenericError is implemented by every error the API surfaces to clients.
type GenericError interface {
	Error() string
	ErrCode() string
	StatusCode() int
}
