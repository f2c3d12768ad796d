package core

// AgentInfo is the self-description every handler exposes.
type AgentInfo struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Version      string   `json:"version" yaml:"version"`
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// Validate requires an id, a name and at least one non-empty capability.
func (i AgentInfo) Validate() error {
	if i.ID == "" {
		return NewError(CodeValidation, "agent id must not be empty")
	}
	if i.Name == "" {
		return NewError(CodeValidation, "agent %q: name must not be empty", i.ID)
	}
	if len(i.Capabilities) == 0 {
		return NewError(CodeValidation, "agent %q: at least one capability is required", i.ID)
	}
	for _, c := range i.Capabilities {
		if c == "" {
			return NewError(CodeValidation, "agent %q: capability names must not be empty", i.ID)
		}
	}
	return nil
}

// HasCapability reports whether the agent declares capability.
func (i AgentInfo) HasCapability(capability string) bool {
	for _, c := range i.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}
