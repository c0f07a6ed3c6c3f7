package errors

import stderrors "errors"

// Is forwards to the standard library so callers need a single import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As forwards to the standard library.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Join forwards to the standard library.
func Join(errs ...error) error { return stderrors.Join(errs...) }

// Text returns a plain error with the given message.
func Text(msg string) error { return stderrors.New(msg) }
