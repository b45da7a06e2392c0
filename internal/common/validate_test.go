package common_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storeengine/internal/common"
)

type transitionBody struct {
	Trigger string `json:"trigger" validate:"required"`
	Count   int    `json:"count" validate:"gte=0"`
}

func TestDecodeJSONValidation(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"count":-1}`))
	var body transitionBody
	err := common.DecodeJSON(req, &body)
	require.Error(t, err)

	rec := httptest.NewRecorder()
	common.WriteError(rec, err)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var payload struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "VALIDATION_FAILED", payload.Error.Code)
	require.Contains(t, payload.Error.Details, "Trigger")
	require.Contains(t, payload.Error.Details, "Count")
}

func TestDecodeJSONMalformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"trigger":`))
	var body transitionBody
	err := common.DecodeJSON(req, &body)

	rec := httptest.NewRecorder()
	common.WriteError(rec, err)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWriteErrorHidesPlainErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	common.WriteError(rec, http.ErrHandlerTimeout)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "timeout")
}
