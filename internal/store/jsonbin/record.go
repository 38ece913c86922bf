package jsonbin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"choreboard/internal/core"
	applog "choreboard/internal/log"
)

// StatusError is a non-2xx answer from the API. Message carries the API's own
// message when the body had one.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return e.Message
}

func statusError(resp *http.Response) error {
	msg := fmt.Sprintf("HTTP error %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var apiErr struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		msg = apiErr.Message
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}

func isEmptyObject(raw []byte) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return false
	}
	return len(m) == 0
}

// decodeRecord validates the stored document. Anything without both arrays
// degrades to an empty board.
func decodeRecord(raw []byte, logger *applog.Logger) core.Board {
	var doc struct {
		Children   *[]core.Child    `json:"children"`
		Categories *[]core.Category `json:"categories"`
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&doc); err != nil || doc.Children == nil || doc.Categories == nil {
		logger.Warn("Invalid board document, using empty board", applog.FieldError, err)
		return core.EmptyBoard()
	}
	return core.Board{Children: *doc.Children, Categories: *doc.Categories}.Normalize()
}
