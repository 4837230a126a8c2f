package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/coursemart/internal/model"
)

func TestNewEnrollmentMessage(t *testing.T) {
	purchaseID := uuid.New()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	msg, err := NewEnrollmentMessage(model.Enrollment{
		UserID:      7,
		CourseID:    42,
		PurchaseID:  purchaseID,
		AmountCents: 80000,
		Source:      model.EnrollmentSourceWebhook,
	}, "coursemart", now)
	require.NoError(t, err)

	assert.Equal(t, "42", string(msg.Key))
	assert.Equal(t, now, msg.Time)

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, EventCourseEnrolled, env.EventType)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "coursemart", env.Producer)
	assert.Equal(t, purchaseID.String(), env.CorrelationID)
	_, err = uuid.Parse(env.EventID)
	assert.NoError(t, err)

	var payload CourseEnrolledPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, CourseEnrolledPayload{
		UserID:      7,
		CourseID:    42,
		PurchaseID:  purchaseID.String(),
		AmountCents: 80000,
		Source:      "gateway_webhook",
	}, payload)
}

func TestNewEnrollmentMessage_FreeCheckoutWithoutPurchase(t *testing.T) {
	msg, err := NewEnrollmentMessage(model.Enrollment{
		UserID:   1,
		CourseID: 2,
		Source:   model.EnrollmentSourceFree,
	}, "coursemart", time.Now())
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Empty(t, env.CorrelationID)
}
