package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestCustomErrorWithErr(t *testing.T) {
	cause := errors.New("decode failed")
	err := ErrInvalidImageFormat.WithErr(cause)

	require.Nil(t, ErrInvalidImageFormat.Err)
	require.ErrorIs(t, err, cause)
	require.Equal(t, "decode failed", err.Error())
	require.Equal(t, http.StatusBadRequest, err.Status)

	var custom *CustomError
	require.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &custom))
	require.Equal(t, "INVALID_IMAGE_FORMAT", custom.Code)
}

func TestCustomErrorResponse(t *testing.T) {
	err := ErrInvalidGeometry.WithErr(errors.New("target 1080x0"))

	resp := err.Response(false)
	require.Equal(t, "INVALID_GEOMETRY", resp.Code)
	require.Empty(t, resp.Details)

	resp = err.Response(true)
	require.Equal(t, "target 1080x0", resp.Details)
	require.Equal(t, ErrInvalidGeometry.Message, ErrInvalidGeometry.Error())
}

func TestIsValidationError(t *testing.T) {
	require.True(t, IsValidationError(NewValidationError("bad")))
	require.True(t, IsValidationError(fmt.Errorf("config: %w", NewValidationError("bad"))))
	require.False(t, IsValidationError(errors.New("bad")))
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	require.Equal(t, zapcore.WarnLevel, ParseLevel(" warning "))
	require.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	require.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestParseJSONBytesStrict(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	require.NoError(t, ParseJSONBytesStrict([]byte(`{"name":"cover"}`), &v))
	require.Equal(t, "cover", v.Name)

	require.Error(t, ParseJSONBytesStrict([]byte(`{"name":"cover","extra":1}`), &v))
	require.Error(t, ParseJSONBytesStrict([]byte(`{"name":"a"}{"name":"b"}`), &v))
	require.Error(t, ParseJSONBytesStrict([]byte(`{`), &v))
}

func TestHashBytes(t *testing.T) {
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", HashBytes(nil))
	require.NotEqual(t, HashBytes([]byte("a")), HashBytes([]byte("b")))
	require.Len(t, GenerateUUID(), 36)
}

func TestFilterImageFields(t *testing.T) {
	fields := filterImageFields([]zapcore.Field{
		{Key: "image", Type: zapcore.StringType, String: "data"},
		{Key: "image_data_uri", Type: zapcore.StringType, String: "data"},
		{Key: "payload_base64", Type: zapcore.StringType, String: "data"},
		{Key: "track_key", Type: zapcore.StringType, String: "abc"},
	})
	require.Len(t, fields, 1)
	require.Equal(t, "track_key", fields[0].Key)
}
