package router

// JsonError is the body of every error response. A handler may return one
// directly to pick the status and the message itself.
type JsonError struct {
	Code int    `json:"code"`
	Err  string `json:"error"`
}

func NewJsonError(code int, msg string) JsonError {
	return JsonError{
		Code: code,
		Err:  msg,
	}
}

func (e JsonError) StatusCode() int {
	return e.Code
}

func (e JsonError) Error() string {
	return e.Err
}

// ErrorMapper is a function that maps go errors to API errors.
type ErrorMapper func(error) JsonError

// MessageMapper responds with code and whatever message returns for the
// error. Callers pass the function that decides which part of an error a
// client may see.
func MessageMapper(code int, message func(error) string) ErrorMapper {
	return func(err error) JsonError {
		return NewJsonError(code, message(err))
	}
}

// MapStatus registers a mapper that responds with code and the full error text.
func (a *Router) MapStatus(target error, code int) {
	a.RegisterErrorMapper(target, MessageMapper(code, error.Error))
}
