package agent

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/hupe1980/kaizen/core"
	"github.com/hupe1980/kaizen/session"
)

// Capabilities served by StateAgent.
const (
	CapStateGet      = "state.get"
	CapStateSet      = "state.set"
	CapArtifactWrite = "artifact.write"
	CapArtifactRead  = "artifact.read"
	CapArtifactList  = "artifact.list"
	CapNote          = "note"
)

// StateAgent exposes direct session operations as capabilities so that a
// plan can read and write state and artifacts or leave notes in the
// trajectory without a dedicated handler.
type StateAgent struct {
	BaseAgent
}

// NewStateAgent creates the built-in session operations agent.
func NewStateAgent() *StateAgent {
	encoding := ParamSpec{Type: "string", Description: `"text" (default) or "base64"`}
	return &StateAgent{BaseAgent: NewBaseAgent(core.AgentInfo{
		ID:      "state_agent_v1",
		Name:    "State Agent",
		Version: "1.0.0",
		Capabilities: []string{
			CapStateGet, CapStateSet, CapArtifactWrite, CapArtifactRead, CapArtifactList, CapNote,
		},
		Description: "Reads and writes session state and artifacts and records notes",
	}, map[string]ParamSchema{
		CapStateGet: {
			"key":     {Type: "string", Required: true},
			"default": {Type: "any", Description: "returned when the key is absent"},
		},
		CapStateSet: {
			"key":   {Type: "string", Required: true},
			"value": {Type: "any", Required: true},
		},
		CapArtifactWrite: {
			"name":     {Type: "string", Required: true},
			"content":  {Type: "string", Required: true},
			"encoding": encoding,
		},
		CapArtifactRead: {
			"name":     {Type: "string", Required: true},
			"encoding": encoding,
		},
		CapArtifactList: {},
		CapNote: {
			"text": {Type: "string", Required: true},
		},
	})}
}

// Invoke performs one session operation.
func (a *StateAgent) Invoke(_ context.Context, capability string, sess *session.Session, params core.Payload) (core.InvokeResult, error) {
	if !a.info.HasCapability(capability) {
		return a.UnknownCapability(capability), nil
	}
	if res, ok := a.CheckParams(capability, params); !ok {
		return res, nil
	}

	switch capability {
	case CapStateGet:
		key := params["key"].(string)
		value, exists := sess.State().Lookup(key)
		if !exists {
			value = params["default"]
		}
		return a.OK(capability, map[string]any{"key": key, "exists": exists, "value": value}), nil

	case CapStateSet:
		key := params["key"].(string)
		version, err := sess.State().Set(key, params["value"])
		if err != nil {
			return a.FromError(capability, err), nil
		}
		return a.OK(capability, map[string]any{"key": key, "state_version": version}), nil

	case CapArtifactWrite:
		name := params["name"].(string)
		data, err := decodeContent(params["content"].(string), params["encoding"])
		if err != nil {
			return a.InvalidParams(capability, err.Error(), map[string]any{"field": "content"}), nil
		}
		if err := sess.Artifacts().Write(name, data); err != nil {
			return a.FromError(capability, err), nil
		}
		return a.OK(capability, map[string]any{"name": name, "size": len(data)}), nil

	case CapArtifactRead:
		name := params["name"].(string)
		data, err := sess.Artifacts().Read(name)
		if err != nil {
			return a.FromError(capability, err), nil
		}
		content, err := encodeContent(data, params["encoding"])
		if err != nil {
			return a.InvalidParams(capability, err.Error(), map[string]any{"field": "encoding"}), nil
		}
		return a.OK(capability, map[string]any{"name": name, "size": len(data), "content": content}), nil

	case CapArtifactList:
		names := sess.Artifacts().List()
		out := make([]any, len(names))
		for i, n := range names {
			out[i] = n
		}
		return a.OK(capability, map[string]any{"artifacts": out}), nil

	default: // CapNote
		seq, err := sess.Append(a.info.ID, core.KindSystemNote, core.Payload{"text": params["text"]})
		if err != nil {
			return a.FromError(capability, err), nil
		}
		return a.OK(capability, map[string]any{"seq_num": seq}), nil
	}
}

func decodeContent(content string, encoding any) ([]byte, error) {
	switch encoding {
	case nil, "", "text":
		return []byte(content), nil
	case "base64":
		data, err := base64.StdEncoding.DecodeString(content)
		if err != nil {
			return nil, fmt.Errorf("content is not valid base64: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %v", encoding)
	}
}

func encodeContent(data []byte, encoding any) (string, error) {
	switch encoding {
	case nil, "", "text":
		return string(data), nil
	case "base64":
		return base64.StdEncoding.EncodeToString(data), nil
	default:
		return "", fmt.Errorf("unsupported encoding %v", encoding)
	}
}
