package types

import "encoding/json"

// MarshalText implements encoding.TextMarshaler so ParameterName can be used
// as a JSON object key (map[ParameterName]ParameterAvailability).
func (p ParameterName) MarshalText() ([]byte, error) { return []byte(p.name), nil }

// UnmarshalText implements encoding.TextUnmarshaler; never fails (unknown
// strings become Custom), per ParseParameterName's contract.
func (p *ParameterName) UnmarshalText(text []byte) error {
	*p = ParseParameterName(string(text))
	return nil
}

type parameterAvailabilityJSON struct {
	Availability string          `json:"availability"`
	Range        *ParameterRange `json:"range,omitempty"`
	Value        any             `json:"value,omitempty"`
}

func (a ParameterAvailability) MarshalJSON() ([]byte, error) {
	out := parameterAvailabilityJSON{}
	switch a.Kind {
	case AvailabilityMutable:
		out.Availability = "mutable"
		r := a.Range
		out.Range = &r
	case AvailabilityReadOnly:
		out.Availability = "read_only"
		out.Value = a.Value
	case AvailabilityOpaque:
		out.Availability = "opaque"
	case AvailabilityUnsupported:
		out.Availability = "unsupported"
	default:
		out.Availability = "unsupported"
	}
	return json.Marshal(out)
}

func (a *ParameterAvailability) UnmarshalJSON(data []byte) error {
	var in parameterAvailabilityJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Availability {
	case "mutable":
		a.Kind = AvailabilityMutable
		if in.Range != nil {
			a.Range = *in.Range
		}
	case "read_only":
		a.Kind = AvailabilityReadOnly
		a.Value = in.Value
	case "opaque":
		a.Kind = AvailabilityOpaque
	default:
		a.Kind = AvailabilityUnsupported
	}
	return nil
}
