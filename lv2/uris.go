package lv2

// Namespace prefixes of the vocabularies the host reads.
const (
	CoreNS   = "http://lv2plug.in/ns/lv2core#"
	AtomNS   = "http://lv2plug.in/ns/ext/atom#"
	StateNS  = "http://lv2plug.in/ns/ext/state#"
	URIDNS   = "http://lv2plug.in/ns/ext/urid#"
	PresetNS = "http://lv2plug.in/ns/ext/presets#"
	RDFNS    = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	RDFSNS   = "http://www.w3.org/2000/01/rdf-schema#"
	XSDNS    = "http://www.w3.org/2001/XMLSchema#"
	DOAPNS   = "http://usefulinc.com/ns/doap#"
	FOAFNS   = "http://xmlns.com/foaf/0.1/"
	DCNS     = "http://purl.org/dc/terms/"
)

// Core vocabulary.
const (
	Plugin          = CoreNS + "Plugin"
	Specification   = CoreNS + "Specification"
	Port            = CoreNS + "port"
	Symbol          = CoreNS + "symbol"
	Index           = CoreNS + "index"
	Name            = CoreNS + "name"
	Default         = CoreNS + "default"
	Minimum         = CoreNS + "minimum"
	Maximum         = CoreNS + "maximum"
	Binary          = CoreNS + "binary"
	RequiredFeature = CoreNS + "requiredFeature"
	OptionalFeature = CoreNS + "optionalFeature"
	ExtensionData   = CoreNS + "extensionData"
	PortProperty    = CoreNS + "portProperty"
	ReportsLatency  = CoreNS + "reportsLatency"
	ScalePoint      = CoreNS + "scalePoint"
	MinorVersion    = CoreNS + "minorVersion"
	MicroVersion    = CoreNS + "microVersion"
	AppliesTo       = CoreNS + "appliesTo"
	Project         = CoreNS + "project"

	InputPort   = CoreNS + "InputPort"
	OutputPort  = CoreNS + "OutputPort"
	AudioPort   = CoreNS + "AudioPort"
	ControlPort = CoreNS + "ControlPort"
	CVPort      = CoreNS + "CVPort"
	AtomPort    = AtomNS + "AtomPort"
)

// RDF, RDFS, DOAP, FOAF and Dublin Core terms.
const (
	RDFType        = RDFNS + "type"
	RDFValue       = RDFNS + "value"
	RDFSLabel      = RDFSNS + "label"
	RDFSSeeAlso    = RDFSNS + "seeAlso"
	RDFSSubClassOf = RDFSNS + "subClassOf"
	RDFSClass      = RDFSNS + "Class"
	RDFSComment    = RDFSNS + "comment"

	DOAPName       = DOAPNS + "name"
	DOAPMaintainer = DOAPNS + "maintainer"
	DOAPLicense    = DOAPNS + "license"

	FOAFName     = FOAFNS + "name"
	FOAFMbox     = FOAFNS + "mbox"
	FOAFHomepage = FOAFNS + "homepage"

	DCReplaces = DCNS + "replaces"
)

// XSD datatypes.
const (
	XSDString       = XSDNS + "string"
	XSDInteger      = XSDNS + "integer"
	XSDInt          = XSDNS + "int"
	XSDLong         = XSDNS + "long"
	XSDDecimal      = XSDNS + "decimal"
	XSDDouble       = XSDNS + "double"
	XSDFloat        = XSDNS + "float"
	XSDBoolean      = XSDNS + "boolean"
	XSDBase64Binary = XSDNS + "base64Binary"
)

// Atom value types used as state property types.
const (
	AtomInt    = AtomNS + "Int"
	AtomLong   = AtomNS + "Long"
	AtomFloat  = AtomNS + "Float"
	AtomDouble = AtomNS + "Double"
	AtomBool   = AtomNS + "Bool"
	AtomString = AtomNS + "String"
	AtomURID   = AtomNS + "URID"
	AtomChunk  = AtomNS + "Chunk"
)

// State extension.
const (
	StateInterfaceURI = StateNS + "interface"
	StateState        = StateNS + "state"
	StatePath         = StateNS + "Path"
	StateMapPath      = StateNS + "mapPath"
	StateMakePath     = StateNS + "makePath"
	StateFreePath     = StateNS + "freePath"

	PresetPreset = PresetNS + "Preset"
	PresetValue  = PresetNS + "value"
)

// URID extension.
const (
	URIDMap   = URIDNS + "map"
	URIDUnmap = URIDNS + "unmap"
)
