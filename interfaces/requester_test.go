package interfaces

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequesterConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  RequesterConfig
		wantErr bool
	}{
		{"valid", RequesterConfig{Timeout: 30 * time.Second}, false},
		{"minimum timeout", RequesterConfig{Timeout: MinTimeout}, false},
		{"timeout too small", RequesterConfig{Timeout: time.Millisecond}, true},
		{"timeout too large", RequesterConfig{Timeout: time.Hour}, true},
		{"negative size", RequesterConfig{Timeout: time.Second, MaxResponseSize: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "Validate() error = %v", err)
		})
	}
}

func TestResponseGet(t *testing.T) {
	r := &Response{Header: map[string]string{"message-id": "abc"}}
	assert.Equal(t, "abc", r.Get("Message-Id"))
	assert.Equal(t, "", r.Get("Missing"))
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, http.MethodGet, MethodOf(&Request{}))
	assert.Equal(t, http.MethodPut, MethodOf(&Request{Method: http.MethodPut}))

	assert.True(t, IsSuccess(204))
	assert.False(t, IsSuccess(301))
	assert.False(t, IsSuccess(404))

	err := StatusError("GET", "https://a/b", 404)
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.Contains(t, err.Error(), "status 404")
}
