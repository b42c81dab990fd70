package mcp

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/pkaski/cubby/internal/errors"
)

// decode turns a tool call's argument map into its typed request struct,
// round-tripping through JSON so field tags and optional pointer fields
// behave like any other client payload. A failure comes back as a
// bad-request error ready for errorResult.
func decode[T any](req mcp.CallToolRequest) (T, *errors.CubbyError) {
	var out T
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return out, errors.NewBadRequest(err.Error())
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, errors.NewBadRequest(err.Error())
	}
	return out, nil
}
