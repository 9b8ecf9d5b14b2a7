package chat

import (
	"bytes"
	"encoding/json"
	stderrors "errors"

	"github.com/kbukum/chatstream/errors"
)

var errNotObject = stderrors.New("line is not a JSON object")

// wireChunk is a stream line, which is either a chunk or an error report.
type wireChunk struct {
	Chunk
	Error string `json:"error"`
}

// DecodeLine decodes one NDJSON line. Blank lines return ok=false with no
// error. A line that is not a chunk object returns a DECODE_FAILED error;
// an {"error": "..."} line returns UPSTREAM_ERROR.
func DecodeLine(line []byte) (Chunk, bool, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return Chunk{}, false, nil
	}
	if trimmed[0] != '{' {
		return Chunk{}, false, errors.DecodeFailed(trimmed, errNotObject)
	}

	var w wireChunk
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return Chunk{}, false, errors.DecodeFailed(trimmed, err)
	}
	if w.Error != "" {
		return Chunk{}, false, errors.Upstream(w.Error)
	}
	if w.Model == "" {
		return Chunk{}, false, errors.DecodeFailed(trimmed, errors.MissingField("model"))
	}
	return w.Chunk, true, nil
}
