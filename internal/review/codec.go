package review

import (
	"encoding/json"
	"fmt"
)

func encodeRecordAction(a RecordAction) ([]byte, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode record action: %w", err)
	}
	return b, nil
}

func decodeRecordAction(payload []byte) (RecordAction, error) {
	var a RecordAction
	if err := json.Unmarshal(payload, &a); err != nil {
		return RecordAction{}, fmt.Errorf("decode record action: %w", err)
	}
	return a, nil
}
