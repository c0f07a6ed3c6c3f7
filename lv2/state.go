package lv2

// StateFlags describe how a stored property value may be treated.
type StateFlags uint32

const (
	// StateIsPOD marks plain data that may be copied and compared bytewise.
	StateIsPOD StateFlags = 1 << iota
	// StateIsPortable marks data meaningful on other machines.
	StateIsPortable
	// StateIsNative marks data only meaningful on this machine.
	StateIsNative
)

// StateStatus is returned by store functions and state interface calls.
type StateStatus int

const (
	StateSuccess StateStatus = iota
	StateErrUnknown
	StateErrBadType
	StateErrBadFlags
	StateErrNoFeature
	StateErrNoProperty
	StateErrNoSpace
	StateErrBadKey
)

func (s StateStatus) String() string {
	switch s {
	case StateSuccess:
		return "success"
	case StateErrUnknown:
		return "unknown error"
	case StateErrBadType:
		return "unknown type"
	case StateErrBadFlags:
		return "bad flags"
	case StateErrNoFeature:
		return "missing feature"
	case StateErrNoProperty:
		return "missing property"
	case StateErrNoSpace:
		return "insufficient space"
	case StateErrBadKey:
		return "bad or duplicate key"
	default:
		return "invalid status"
	}
}

// StoreFunc records one property during a save. The value is copied before
// the call returns.
type StoreFunc func(key URID, value []byte, typ URID, flags StateFlags) StateStatus

// RetrieveFunc looks up one property during a restore.
type RetrieveFunc func(key URID) (value []byte, typ URID, flags StateFlags, ok bool)

// StateInterface is returned from ExtensionData(StateInterfaceURI).
type StateInterface struct {
	Save    func(h Handle, store StoreFunc, flags StateFlags, features Features) StateStatus
	Restore func(h Handle, retrieve RetrieveFunc, flags StateFlags, features Features) StateStatus
}

// MapPath is the payload of the StateMapPath feature.
type MapPath struct {
	AbstractPath func(absolute string) string
	AbsolutePath func(abstract string) string
}

// MakePath is the payload of the StateMakePath feature.
type MakePath struct {
	Path func(name string) string
}

// FreePath is the payload of the StateFreePath feature.
type FreePath struct {
	Free func(path string)
}
