// Package record classifies and normalizes raw platform results into
// template-ready records. Classification is a pure function of a record's
// keys; normalization derives display-safe fields (defanged domains,
// formatted dates) while preserving the raw input.
package record

// DataType identifies the semantic shape of a raw platform record.
type DataType string

// The classifier's codomain. Every raw record maps to exactly one of these;
// TypeMessage is synthesized by the report assembler, never by the classifier.
const (
	TypeWhois        DataType = "whois"
	TypeWebscan      DataType = "webscan"
	TypeDomainSearch DataType = "domain_search"
	TypeGeneric      DataType = "generic"
	TypeUnknown      DataType = "unknown"
	TypeMessage      DataType = "message"
)

// Record pairs a classified data type with its normalized fields. Template
// selection dispatches on Type; Fields holds everything the templates read.
type Record struct {
	Type   DataType
	Fields map[string]any
}

// Message builds the synthetic record emitted when a response contained no
// extractable results.
func Message(text string) Record {
	return Record{
		Type: TypeMessage,
		Fields: map[string]any{
			"data_type": string(TypeMessage),
			"message":   text,
		},
	}
}
