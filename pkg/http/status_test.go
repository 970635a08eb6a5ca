package xhttp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func TestStatusText(t *testing.T) {
	assert.Equal(t, "Not Found", StatusText(StatusNotFound))
	assert.Equal(t, "Request Timeout", StatusText(StatusRequestTimeout))
	assert.Equal(t, "Internal Server Error", StatusText(StatusInternalServerError))
}

func TestNotFoundHandler(t *testing.T) {
	ctx := &fasthttp.RequestCtx{}
	NotFoundHandler(ctx)

	assert.Equal(t, StatusNotFound, ctx.Response.StatusCode())
	assert.Equal(t, "Not Found", string(ctx.Response.Body()))
}
