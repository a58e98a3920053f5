package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BradenHooton/prospector/internal/models"
)

// taskEnvelope covers the fields shared by every start and result response.
// The task hash has been observed at the top level, under data and under meta.
// Result payloads arrive either under data or as top-level prospects/emails.
type taskEnvelope struct {
	Success   *bool           `json:"success"`
	Status    string          `json:"status"`
	TaskHash  string          `json:"task_hash"`
	Data      json.RawMessage `json:"data"`
	Prospects json.RawMessage `json:"prospects"`
	Emails    json.RawMessage `json:"emails"`
	Meta      struct {
		TaskHash string `json:"task_hash"`
	} `json:"meta"`
}

func decodeEnvelope(body []byte) (*taskEnvelope, error) {
	var env taskEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedResponse, err)
	}
	return &env, nil
}

// parseTaskHash extracts the correlation token of a started task
func parseTaskHash(body []byte) (string, error) {
	env, err := decodeEnvelope(body)
	if err != nil {
		return "", err
	}
	if env.TaskHash != "" {
		return env.TaskHash, nil
	}
	if env.Meta.TaskHash != "" {
		return env.Meta.TaskHash, nil
	}

	var data struct {
		TaskHash string `json:"task_hash"`
	}
	if len(env.Data) > 0 && env.Data[0] == '{' && json.Unmarshal(env.Data, &data) == nil && data.TaskHash != "" {
		return data.TaskHash, nil
	}
	return "", fmt.Errorf("%w: start response has no task_hash", models.ErrMalformedResponse)
}

// taskState maps a poll response onto done/pending/failed. A response
// without a status counts as done once it carries a result payload.
func taskState(env *taskEnvelope, hasPayload bool) (bool, error) {
	switch strings.ToLower(env.Status) {
	case "completed", "complete", "done", "success":
		return true, nil
	case "failed", "error", "not_found":
		return false, fmt.Errorf("%w: status %q", models.ErrTaskFailed, env.Status)
	}
	if env.Success != nil && !*env.Success {
		return false, fmt.Errorf("%w: provider reported failure", models.ErrTaskFailed)
	}
	return env.Status == "" && hasPayload, nil
}

// present reports whether raw holds a non-null JSON value
func present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// member returns the value of key when raw is a JSON object
func member(raw json.RawMessage, key string) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var obj map[string]json.RawMessage
	if json.Unmarshal(raw, &obj) != nil {
		return nil
	}
	return obj[key]
}

// resultList locates the list named key in a result response: top level,
// data itself when it is an array, or data.<key>. ok is false when no
// payload has arrived yet.
func resultList(env *taskEnvelope, top json.RawMessage, key string) (json.RawMessage, bool) {
	if present(top) {
		return top, true
	}
	if !present(env.Data) {
		return nil, false
	}
	if nested := member(env.Data, key); present(nested) {
		return nested, true
	}
	if bytes.TrimSpace(env.Data)[0] == '{' {
		return nil, false
	}
	// arrays and anything unexpected are handed to the decoder as is
	return env.Data, true
}
