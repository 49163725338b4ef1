package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/sbilibin2017/gw-shop-auth/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSvc := NewMockRegisterer(ctrl)
	result := testAuthResult()
	input := RegisterRequest{Username: "john", Name: "John", Email: "john@example.com", Password: "secret1"}

	tests := []struct {
		name            string
		inputBody       interface{}
		mockSetup       func()
		expectedCode    int
		expectedMessage string
	}{
		{
			name:      "created",
			inputBody: input,
			mockSetup: func() {
				mockSvc.EXPECT().Register(gomock.Any(), "john", "John", "john@example.com", "secret1").Return(result, nil)
			},
			expectedCode: http.StatusCreated,
		},
		{
			name:            "invalid JSON",
			inputBody:       "not json",
			mockSetup:       func() {},
			expectedCode:    http.StatusBadRequest,
			expectedMessage: "Invalid request body",
		},
		{
			name:      "missing fields",
			inputBody: RegisterRequest{Username: "john"},
			mockSetup: func() {
				mockSvc.EXPECT().Register(gomock.Any(), "john", "", "", "").Return(nil, services.ErrMissingFields)
			},
			expectedCode:    http.StatusBadRequest,
			expectedMessage: "All fields are required",
		},
		{
			name:      "duplicate username",
			inputBody: input,
			mockSetup: func() {
				mockSvc.EXPECT().Register(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, services.ErrUsernameTaken)
			},
			expectedCode:    http.StatusConflict,
			expectedMessage: "Duplicated username entered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", jsonBody(t, tt.inputBody))
			rec := httptest.NewRecorder()

			NewRegisterHandler(mockSvc, testCookie).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedCode, rec.Code)
			if tt.expectedCode == http.StatusCreated {
				var resp AuthResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.True(t, resp.Success)
				assert.Equal(t, "ACCESS", resp.AccessToken)
				assert.Equal(t, "john", resp.User.Username)
				assert.NotNil(t, refreshCookie(rec))
				assert.NotContains(t, rec.Body.String(), "REFRESH")
				assert.NotContains(t, rec.Body.String(), "password")
				return
			}

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.expectedMessage, resp.Message)
			assert.Nil(t, refreshCookie(rec))
		})
	}
}
