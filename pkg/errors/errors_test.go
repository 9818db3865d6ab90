package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeInvalidInput, http.StatusBadRequest},
		{CodeInvalidDate, http.StatusBadRequest},
		{CodeValidationFail, http.StatusBadRequest},
		{CodeUnauthorized, http.StatusUnauthorized},
		{CodeSessionExpired, http.StatusUnauthorized},
		{CodeTenantDisabled, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeInvalidTransition, http.StatusConflict},
		{CodeScheduleConflict, http.StatusConflict},
		{CodeCapacityExceeded, http.StatusUnprocessableEntity},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeUpstreamUnavailable, http.StatusBadGateway},
		{CodeStorageError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.code, "x").HTTPStatus)
		})
	}
}

func TestWrapAndInspect(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("加载失败: %w", Wrap(cause, CodeStorageError, "读取存储失败"))

	assert.True(t, Is(err, CodeStorageError))
	assert.False(t, Is(err, CodeNotFound))
	assert.Equal(t, CodeStorageError, GetCode(err))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")

	plain := errors.New("plain")
	assert.Equal(t, CodeUnknown, GetCode(plain))
	assert.False(t, Is(plain, CodeUnknown))
}

func TestInvalidTransition(t *testing.T) {
	err := InvalidTransition("accepted", "proposed")
	assert.Equal(t, CodeInvalidTransition, err.Code)
	assert.Equal(t, "accepted", err.Fields["from"])
	assert.Equal(t, "proposed", err.Fields["to"])
}

func TestValidationErrors(t *testing.T) {
	ve := &ValidationErrors{}
	assert.False(t, ve.HasErrors())
	assert.Equal(t, "验证失败", ve.Error())

	ve.Add("baseCapacity", "必须大于或等于0")
	ve.Add("workerId", "为必填字段")
	require.True(t, ve.HasErrors())
	assert.Contains(t, ve.Error(), "baseCapacity")

	appErr := ve.ToAppError()
	assert.Equal(t, CodeValidationFail, appErr.Code)
	assert.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
	assert.Len(t, appErr.Fields, 2)
}
