package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datascoop/datascoop/internal/shared"
)

func TestRespondErrorMapsTaxonomy(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("x: %w", shared.ErrNotFound):              http.StatusNotFound,
		fmt.Errorf("x: %w", shared.ErrDuplicateName):         http.StatusConflict,
		fmt.Errorf("x: %w", shared.ErrIdempotencyConflict):   http.StatusConflict,
		fmt.Errorf("x: %w", shared.ErrInvalidArgument):       http.StatusBadRequest,
		fmt.Errorf("x: %w", shared.ErrInsufficientInventory): http.StatusUnprocessableEntity,
		errors.New("db down"):                                http.StatusInternalServerError,
	}
	for err, status := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, err)
		require.Equal(t, status, rr.Code, err.Error())

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Equal(t, status, body.Status)
		if status == http.StatusInternalServerError {
			require.Empty(t, body.Detail)
		}
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	var target struct {
		Name string `json:"name"`
	}
	err := DecodeJSON(req, &target)
	require.ErrorIs(t, err, ErrBadRequest)
}
