package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	graphql "github.com/graph-gophers/graphql-go"
	gqlerrors "github.com/graph-gophers/graphql-go/errors"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

const (
	graphqlRoute       = "/graphql"
	maxRequestBodySize = 1 << 20 // 1 MiB
	healthTimeout      = 5 * time.Second
)

type graphqlRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, schema *graphql.Schema, store Storage, logger *log.Logger) {
	e.POST(graphqlRoute, serveGraphQL(schema, logger))
	e.GET("/healthz", healthz(store))
}

func healthz(store Storage) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusServiceUnavailable, err.Error())
		}
		return c.NoContent(http.StatusOK)
	}
}

func serveGraphQL(schema *graphql.Schema, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics := newRequestMetrics(logger, c.Response().Header().Get(echo.HeaderXRequestID))
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		decodeStart := time.Now()
		var req graphqlRequest
		dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, maxRequestBodySize))
		decodeErr := dec.Decode(&req)
		metrics.ObserveDecode(time.Since(decodeStart))
		if decodeErr != nil {
			metrics.SetErrorStage("decode")
			return writeResponse(c, metrics, http.StatusBadRequest, errorResponse("invalid request body"))
		}
		if req.Query == "" {
			metrics.SetErrorStage("decode")
			return writeResponse(c, metrics, http.StatusBadRequest, errorResponse("no query string supplied in request"))
		}
		metrics.SetOperation(req.OperationName)

		execStart := time.Now()
		resp := schema.Exec(ctx, req.Query, req.OperationName, req.Variables)
		metrics.ObserveExec(time.Since(execStart))
		metrics.SetErrorCount(len(resp.Errors))

		status := http.StatusOK
		if !executed(resp) {
			status = http.StatusBadRequest
			metrics.SetErrorStage("validate")
		}
		return writeResponse(c, metrics, status, resp)
	}
}

// executed reports whether any root field ran. Errors raised while resolving
// carry the path of their field; parse, validation and argument errors do not.
func executed(resp *graphql.Response) bool {
	if len(resp.Errors) == 0 {
		return true
	}
	for _, qerr := range resp.Errors {
		if len(qerr.Path) > 0 {
			return true
		}
	}
	return false
}

func errorResponse(msg string) *graphql.Response {
	return &graphql.Response{Errors: []*gqlerrors.QueryError{{Message: msg}}}
}

func writeResponse(c echo.Context, metrics *requestMetrics, status int, resp *graphql.Response) error {
	encodeStart := time.Now()
	data, err := sonic.Marshal(resp)
	metrics.ObserveEncode(time.Since(encodeStart))
	if err != nil {
		metrics.SetErrorStage("encode_response")
		return err
	}
	return c.JSONBlob(status, data)
}
