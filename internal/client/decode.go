package client

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/simonhull/hatch/internal/scaffold"
)

// DecodeDescriptor validates a response body against the descriptor schema:
//
//	{ "files": [ { "path": <non-empty string>, "content": <string> }, ... ] }
//
// The first violation is returned as a *scaffold.ProtocolError naming the
// offending field, e.g. "files[1].content".
func DecodeDescriptor(data []byte) (*scaffold.Descriptor, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		return nil, &scaffold.ProtocolError{Field: "body", Reason: "must be a JSON object"}
	}

	rawFiles, ok := top["files"]
	if !ok {
		return nil, &scaffold.ProtocolError{Field: "files", Reason: "missing"}
	}

	var elems []json.RawMessage
	if isNull(rawFiles) || json.Unmarshal(rawFiles, &elems) != nil {
		return nil, &scaffold.ProtocolError{Field: "files", Reason: "must be an array"}
	}

	desc := &scaffold.Descriptor{Files: make([]scaffold.FileEntry, 0, len(elems))}
	for i, raw := range elems {
		entry, err := decodeEntry(i, raw)
		if err != nil {
			return nil, err
		}
		desc.Files = append(desc.Files, entry)
	}
	return desc, nil
}

func decodeEntry(i int, raw json.RawMessage) (scaffold.FileEntry, error) {
	field := func(name string) string {
		if name == "" {
			return fmt.Sprintf("files[%d]", i)
		}
		return fmt.Sprintf("files[%d].%s", i, name)
	}

	var obj map[string]json.RawMessage
	if isNull(raw) || json.Unmarshal(raw, &obj) != nil {
		return scaffold.FileEntry{}, &scaffold.ProtocolError{Field: field(""), Reason: "must be an object"}
	}

	var entry scaffold.FileEntry

	rawPath, ok := obj["path"]
	if !ok {
		return entry, &scaffold.ProtocolError{Field: field("path"), Reason: "missing"}
	}
	if isNull(rawPath) || json.Unmarshal(rawPath, &entry.Path) != nil || entry.Path == "" {
		return entry, &scaffold.ProtocolError{Field: field("path"), Reason: "must be a non-empty string"}
	}

	rawContent, ok := obj["content"]
	if !ok {
		return entry, &scaffold.ProtocolError{Field: field("content"), Reason: "missing"}
	}
	if isNull(rawContent) || json.Unmarshal(rawContent, &entry.Content) != nil {
		return entry, &scaffold.ProtocolError{Field: field("content"), Reason: "must be a string"}
	}

	return entry, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
