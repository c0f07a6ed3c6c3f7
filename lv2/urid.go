package lv2

// URID is a host-assigned integer standing for a URI. Zero is never a
// valid URID.
type URID uint32

// Mapper maps URIs to URIDs. It is the payload of the URIDMap feature.
type Mapper interface {
	Map(uri string) URID
}

// Unmapper maps URIDs back to URIs. It is the payload of the URIDUnmap feature.
type Unmapper interface {
	Unmap(id URID) (string, bool)
}
