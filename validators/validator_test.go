package validators

import (
	"testing"

	"github.com/anonto42/nano-chat/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestValidateReportsJSONFieldNames(t *testing.T) {
	v := NewValidator()

	err := v.Validate(models.CreateChannelRequest{Name: "", Type: "STAGE"})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "name is required")
		assert.Contains(t, err.Error(), "type must be one of TEXT AUDIO VIDEO")
	}

	assert.NoError(t, v.Validate(models.CreateChannelRequest{Name: "general", Type: models.ChannelText}))
}

func TestSendMessageNeedsContentOrMedia(t *testing.T) {
	v := NewValidator()

	assert.Error(t, v.Validate(models.SendMessageRequest{}))
	assert.NoError(t, v.Validate(models.SendMessageRequest{Content: "hi"}))
	assert.NoError(t, v.Validate(models.SendMessageRequest{ImageURL: "https://cdn.example.com/x.png"}))
	assert.Error(t, v.Validate(models.SendMessageRequest{FileURL: "not a url"}))
}

func TestRegisterUserRequest(t *testing.T) {
	v := NewValidator()

	err := v.Validate(models.RegisterUserRequest{Email: "nope", UserName: "h", FullName: "Hana"})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "email must be a valid email address")
		assert.Contains(t, err.Error(), "user_name must be at least 2 characters")
	}
	assert.NoError(t, v.Validate(models.RegisterUserRequest{Email: "hana@example.com", UserName: "hana", FullName: "Hana"}))
}
