package api

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"event-scheduler/domain"
)

const (
	codeInvalidArgument = "INVALID_ARGUMENT"
	codeInternal        = "INTERNAL"
)

// resolverError carries a machine readable code next to the message shown to
// the caller. graphql-go copies Extensions into the response error.
type resolverError struct {
	err  error
	code string
}

func newResolverError(err error) *resolverError {
	code := codeInternal
	if domain.IsInvalidArgument(err) {
		code = codeInvalidArgument
	}
	return &resolverError{err: err, code: code}
}

func (e *resolverError) Error() string { return e.err.Error() }

func (e *resolverError) Unwrap() error { return e.err }

func (e *resolverError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.code}
}

type panicLogger struct {
	logger *log.Logger
}

func (l panicLogger) LogPanic(ctx context.Context, value interface{}) {
	l.logger.WithField("panic", fmt.Sprint(value)).Error("graphql resolver panic")
}
