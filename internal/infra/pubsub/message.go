package pubsub

import (
	"encoding/json"
	"strconv"

	"userapi/internal/domain/entity"
	"userapi/internal/errors"
)

// Message attribute keys shared by every provider.
const (
	attrEventType = "event_type"
	attrUserID    = "user_id"
	attrRequestID = "request_id"
)

// encodeUserEvent returns the JSON payload and routing attributes for event.
func encodeUserEvent(event *entity.UserEvent) ([]byte, map[string]string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to encode user event")
	}

	attributes := map[string]string{
		attrEventType: string(event.Type),
		attrUserID:    strconv.FormatInt(event.UserID, 10),
	}
	if event.RequestID != "" {
		attributes[attrRequestID] = event.RequestID
	}

	return data, attributes, nil
}
