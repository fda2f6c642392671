package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAndCode(t *testing.T) {
	err := New("Logic.Op.check", ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest)
	assert.Equal(t, http.StatusBadRequest, err.GetCode())
	assert.Equal(t, ERROR_INVALIDARGUMENT, err.Message())
}

func TestTraceChain(t *testing.T) {
	inner := New("Store.Get", ERROR_NOTFOUND, fmt.Errorf("no rows")).Code(http.StatusNotFound)
	outer := Trace("Logic.Op", inner)

	assert.Equal(t, http.StatusNotFound, outer.GetCode())
	assert.Contains(t, outer.Error(), "Store.Get->Logic.Op")
}

func TestMessageHelper(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "plain", Message(fmt.Errorf("plain")))
	assert.Equal(t, ERROR_FORBIDDEN, Message(New("t", ERROR_FORBIDDEN, nil)))
}
