package listcache

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/IvanBrykalov/deltacache/delta"
)

// wireItem is the stored form of a delta.Item. Field names are short since
// they repeat for every item before compression.
type wireItem struct {
	ID        string          `json:"i"`
	UpdatedAt string          `json:"u,omitempty"`
	Payload   json.RawMessage `json:"p,omitempty"`
}

// codec serializes item lists and compresses them. EncodeAll and DecodeAll
// are safe for concurrent use, so one codec serves every shard.
type codec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newCodec(level int) (*codec, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("listcache: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("listcache: zstd decoder: %w", err)
	}
	return &codec{enc: enc, dec: dec}, nil
}

func (c *codec) encode(items []delta.Item) ([]byte, error) {
	w := make([]wireItem, len(items))
	for i, it := range items {
		w[i] = wireItem{ID: it.ID, UpdatedAt: it.UpdatedAt, Payload: it.Payload}
	}
	raw, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("listcache: encode items: %w", err)
	}
	return c.enc.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

func (c *codec) decode(payload []byte) ([]delta.Item, error) {
	raw, err := c.dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("listcache: decompress: %w", err)
	}
	var w []wireItem
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("listcache: decode items: %w", err)
	}
	items := make([]delta.Item, len(w))
	for i, x := range w {
		items[i] = delta.Item{ID: x.ID, UpdatedAt: x.UpdatedAt, Payload: x.Payload}
	}
	return items, nil
}

func (c *codec) close() {
	_ = c.enc.Close()
	c.dec.Close()
}
