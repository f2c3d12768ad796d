package core

import "fmt"

// CapabilityCall is one step of a plan: a capability name plus parameters.
type CapabilityCall struct {
	Capability string  `json:"capability" yaml:"capability"`
	Params     Payload `json:"params,omitempty" yaml:"params,omitempty"`
}

// NewCall validates and builds a CapabilityCall. Params are copied into
// canonical form.
func NewCall(capability string, params Payload) (CapabilityCall, error) {
	c := CapabilityCall{Capability: capability, Params: params}
	if err := c.Validate(); err != nil {
		return CapabilityCall{}, err
	}
	p, _ := CanonicalizePayload(params)
	c.Params = p
	return c, nil
}

// Validate checks that the capability is set and params are JSON-compatible.
func (c CapabilityCall) Validate() error {
	if c.Capability == "" {
		return NewError(CodeValidation, "capability must not be empty")
	}
	if _, err := CanonicalizePayload(c.Params); err != nil {
		return WrapError(CodeContentInvalidPayload, err, "params for %q are not JSON-compatible", c.Capability)
	}
	return nil
}

func (c CapabilityCall) String() string {
	if len(c.Params) == 0 {
		return c.Capability
	}
	return fmt.Sprintf("%s%v", c.Capability, c.Params)
}
