// Package delta computes the minimal changeset between two successive polls
// of an upstream item list.
//
// Items are identified by their id. When both sides carry an updated_at
// stamp the stamps alone decide whether an item changed; otherwise the
// canonical payloads are compared byte for byte.
package delta

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNoID is returned when an upstream object has no usable "id" field.
	ErrNoID = errors.New("delta: item has no id")
	// ErrNotObject is returned when an upstream element is not a JSON object.
	ErrNotObject = errors.New("delta: item is not a JSON object")
)

// Item is one element of an upstream list.
//
// Only ID and UpdatedAt are interpreted; Payload is the whole upstream
// object kept in canonical JSON form (sorted keys, compact, numbers as
// written upstream) so equal objects have equal bytes. Items built by hand
// should carry compact JSON for the same reason.
type Item struct {
	ID string
	// UpdatedAt is the upstream freshness marker. Empty means the item was
	// not stamped (missing or null).
	UpdatedAt string
	Payload   json.RawMessage
}

// ParseItem decodes one upstream JSON object.
func ParseItem(raw []byte) (Item, error) {
	var it Item
	if err := it.UnmarshalJSON(raw); err != nil {
		return Item{}, err
	}
	return it, nil
}

// ParseItems decodes a JSON array of upstream objects, preserving order.
func ParseItems(raw []byte) ([]Item, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("delta: decode list: %w", err)
	}
	items := make([]Item, 0, len(elems))
	for i, e := range elems {
		it, err := ParseItem(e)
		if err != nil {
			return nil, fmt.Errorf("delta: item %d: %w", i, err)
		}
		items = append(items, it)
	}
	return items, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (it *Item) UnmarshalJSON(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if obj == nil {
		return ErrNotObject
	}

	id, ok := scalar(obj["id"])
	if !ok || id == "" {
		return ErrNoID
	}
	updated, _ := scalar(obj["updated_at"])

	payload, err := canonical(obj)
	if err != nil {
		return err
	}
	*it = Item{ID: id, UpdatedAt: updated, Payload: payload}
	return nil
}

// MarshalJSON emits the upstream object unchanged.
func (it Item) MarshalJSON() ([]byte, error) {
	if len(it.Payload) == 0 {
		return json.Marshal(map[string]string{"id": it.ID})
	}
	return it.Payload, nil
}

// scalar renders a string or number field as a string.
func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	default:
		return "", false
	}
}

// canonical re-encodes a decoded object. encoding/json writes map keys in
// sorted order, which is what makes the bytes comparable. The output is
// already in the form json.Marshal would re-emit for a RawMessage, so it
// survives a round trip through the cache byte for byte.
func canonical(obj map[string]any) (json.RawMessage, error) {
	b, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("delta: encode payload: %w", err)
	}
	return b, nil
}
