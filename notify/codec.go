package notify

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// codec 事件编码
type codec interface {
	Marshal(v any) ([]byte, error)
	ContentType() string
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) ContentType() string           { return "application/json" }

type msgpackCodec struct{}

func (msgpackCodec) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }
func (msgpackCodec) ContentType() string           { return "application/msgpack" }

func newCodec(encoding string) codec {
	if encoding == "msgpack" {
		return msgpackCodec{}
	}
	return jsonCodec{}
}
