package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"kavaach/database"

	"github.com/gin-gonic/gin"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	testCases := []struct {
		err        error
		wantStatus int
	}{
		{fmt.Errorf("%w: image is required", database.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: KVH-2026-0001", database.ErrReportNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: TRK-01", database.ErrTruckNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: TRK-01 is on KVH-2026-0001", database.ErrTruckBusy), http.StatusConflict},
		{fmt.Errorf("%w: KVH-2026-0001", database.ErrReportClosed), http.StatusConflict},
		{fmt.Errorf("%w: Resolved -> New", database.ErrIllegalTransition), http.StatusConflict},
		{database.ErrInvalidCredentials, http.StatusUnauthorized},
		{fmt.Errorf("%w: vision: connection refused", database.ErrUpstream), http.StatusBadGateway},
		{errors.New("driver: bad connection"), http.StatusInternalServerError},
	}

	for _, testCase := range testCases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		respondError(c, testCase.err)
		if w.Code != testCase.wantStatus {
			t.Errorf("respondError(%v): expected %d, got %d", testCase.err, testCase.wantStatus, w.Code)
		}
	}
}
