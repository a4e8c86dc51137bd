package card

import (
	"encoding/json"
	"fmt"
)

// encodeCard produces the canonical encoding of a Card, used for
// ContentHash. Card has no map fields, so plain encoding/json already
// produces a deterministic byte sequence.
func encodeCard(c Card) ([]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode card: %w", err)
	}
	return b, nil
}

// encodeAction produces the canonical event-payload encoding of an Action.
func encodeAction(a Action) ([]byte, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode action: %w", err)
	}
	return b, nil
}

func decodeAction(payload []byte) (Action, error) {
	var a Action
	if err := json.Unmarshal(payload, &a); err != nil {
		return Action{}, fmt.Errorf("decode action: %w", err)
	}
	return a, nil
}
