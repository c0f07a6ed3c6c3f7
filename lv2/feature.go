package lv2

// Feature is a capability offered by the host, identified by URI. Data is
// the feature payload; its concrete type is fixed by the feature URI.
type Feature struct {
	Data any
	URI  string
}

// Features is the host feature list handed to instantiate and state calls.
type Features []Feature

// Find returns the payload of the feature with the given URI.
func (fs Features) Find(uri string) (any, bool) {
	for _, f := range fs {
		if f.URI == uri {
			return f.Data, true
		}
	}
	return nil, false
}

// Contains reports whether a feature with the given URI is present.
func (fs Features) Contains(uri string) bool {
	_, ok := fs.Find(uri)
	return ok
}

// With returns a new list with f placed first. The receiver is not modified.
func (fs Features) With(f ...Feature) Features {
	out := make(Features, 0, len(fs)+len(f))
	out = append(out, f...)
	return append(out, fs...)
}

// URIs lists the feature URIs in order.
func (fs Features) URIs() []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.URI
	}
	return out
}

// FindFeature returns the typed payload of the feature with the given URI.
func FindFeature[T any](fs Features, uri string) (T, bool) {
	var zero T
	data, ok := fs.Find(uri)
	if !ok {
		return zero, false
	}
	v, ok := data.(T)
	return v, ok
}
