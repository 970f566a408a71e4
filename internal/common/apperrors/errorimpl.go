package apperrors

type appError struct {
	msg        string
	base       Error
	wrapped    []error
	statuscode int
}

func (e *appError) Error() string {
	return e.msg
}

func (e *appError) Unwrap() []error {
	return e.wrapped
}

func (e *appError) New(msg string) Error {
	return &appError{
		msg:        msg,
		statuscode: e.statuscode,
		base:       e,
	}
}

func (e *appError) Msg(msg string) Error {
	return &appError{
		msg:        msg,
		statuscode: e.statuscode,
		base:       e,
		wrapped:    e.wrapped,
	}
}

func (e *appError) MsgErr(msg string, err ...error) Error {
	return &appError{
		msg:        msg,
		statuscode: e.statuscode,
		base:       e,
		wrapped:    append(append([]error{}, e.wrapped...), err...),
	}
}

func (e *appError) Err(err ...error) Error {
	return &appError{
		msg:        e.msg,
		statuscode: e.statuscode,
		base:       e,
		wrapped:    append(append([]error{}, e.wrapped...), err...),
	}
}

func (e *appError) Is(target error) bool {
	if e == target || e.base == target {
		return true
	}
	if e.base != nil && e.base.Is(target) {
		return true
	}
	for _, err := range e.wrapped {
		if err == target {
			return true
		}
	}
	return false
}

func (e *appError) SetStatusCode(code int) Error {
	e.statuscode = code
	return e
}

func (e *appError) StatusCode() int {
	return e.statuscode
}

func New(msg string) Error {
	return &appError{msg: msg}
}
