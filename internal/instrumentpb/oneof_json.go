package instrumentpb

import "encoding/json"

// Field.Name and Field.Value, and ResourceKind.Kind, are oneofs held
// behind unexported marker interfaces (protoc-gen-go's own style). Plain
// encoding/json, which the wire codec in codec.go delegates to, cannot
// unmarshal an object into an interface-typed field without help, so
// Field and ResourceKind get hand-written Marshal/UnmarshalJSON pairs that
// pick the right variant instead.

func (f *Field) MarshalJSON() ([]byte, error) {
	var raw struct {
		StrName  *string `json:"StrName,omitempty"`
		NameIdx  *uint64 `json:"NameIdx,omitempty"`
		DebugVal *string `json:"DebugVal,omitempty"`
		StrVal   *string `json:"StrVal,omitempty"`
		U64Val   *uint64 `json:"U64Val,omitempty"`
		I64Val   *int64  `json:"I64Val,omitempty"`
		BoolVal  *bool   `json:"BoolVal,omitempty"`
	}

	switch name := f.Name.(type) {
	case *Field_StrName:
		raw.StrName = &name.StrName
	case *Field_NameIdx:
		raw.NameIdx = &name.NameIdx
	}

	switch value := f.Value.(type) {
	case *Field_DebugVal:
		raw.DebugVal = &value.DebugVal
	case *Field_StrVal:
		raw.StrVal = &value.StrVal
	case *Field_U64Val:
		raw.U64Val = &value.U64Val
	case *Field_I64Val:
		raw.I64Val = &value.I64Val
	case *Field_BoolVal:
		raw.BoolVal = &value.BoolVal
	}

	return json.Marshal(raw)
}

func (f *Field) UnmarshalJSON(data []byte) error {
	var raw struct {
		StrName  *string
		NameIdx  *uint64
		DebugVal *string
		StrVal   *string
		U64Val   *uint64
		I64Val   *int64
		BoolVal  *bool
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch {
	case raw.StrName != nil:
		f.Name = &Field_StrName{StrName: *raw.StrName}
	case raw.NameIdx != nil:
		f.Name = &Field_NameIdx{NameIdx: *raw.NameIdx}
	}

	switch {
	case raw.DebugVal != nil:
		f.Value = &Field_DebugVal{DebugVal: *raw.DebugVal}
	case raw.StrVal != nil:
		f.Value = &Field_StrVal{StrVal: *raw.StrVal}
	case raw.U64Val != nil:
		f.Value = &Field_U64Val{U64Val: *raw.U64Val}
	case raw.I64Val != nil:
		f.Value = &Field_I64Val{I64Val: *raw.I64Val}
	case raw.BoolVal != nil:
		f.Value = &Field_BoolVal{BoolVal: *raw.BoolVal}
	}

	return nil
}

func (k *ResourceKind) MarshalJSON() ([]byte, error) {
	var raw struct {
		Known *ResourceKnownKind `json:"Known,omitempty"`
		Other *string            `json:"Other,omitempty"`
	}

	switch kind := k.Kind.(type) {
	case *ResourceKind_Known:
		raw.Known = &kind.Known
	case *ResourceKind_Other:
		raw.Other = &kind.Other
	}

	return json.Marshal(raw)
}

func (k *ResourceKind) UnmarshalJSON(data []byte) error {
	var raw struct {
		Known *ResourceKnownKind
		Other *string
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch {
	case raw.Known != nil:
		k.Kind = &ResourceKind_Known{Known: *raw.Known}
	case raw.Other != nil:
		k.Kind = &ResourceKind_Other{Other: *raw.Other}
	}

	return nil
}
