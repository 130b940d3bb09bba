package wire

// Namespace identifies one of the XML namespaces used on the wire.
type Namespace int

const (
	// NamespaceNone is the empty namespace (unqualified names).
	NamespaceNone Namespace = iota
	// NamespaceTypes holds item, folder and value elements.
	NamespaceTypes
	// NamespaceMessages holds request and response message elements.
	NamespaceMessages
	// NamespaceSoap is the SOAP 1.1 envelope namespace.
	NamespaceSoap
	// NamespaceErrors holds elements of SOAP fault details.
	NamespaceErrors
)

const (
	TypesURI    = "http://schemas.microsoft.com/exchange/services/2006/types"
	MessagesURI = "http://schemas.microsoft.com/exchange/services/2006/messages"
	SoapURI     = "http://schemas.xmlsoap.org/soap/envelope/"
	ErrorsURI   = "http://schemas.microsoft.com/exchange/services/2006/errors"
)

// URI returns the namespace URI.
func (ns Namespace) URI() string {
	switch ns {
	case NamespaceTypes:
		return TypesURI
	case NamespaceMessages:
		return MessagesURI
	case NamespaceSoap:
		return SoapURI
	case NamespaceErrors:
		return ErrorsURI
	default:
		return ""
	}
}

// Prefix returns the prefix the encoder uses for the namespace.
func (ns Namespace) Prefix() string {
	switch ns {
	case NamespaceTypes:
		return "t"
	case NamespaceMessages:
		return "m"
	case NamespaceSoap:
		return "soap"
	case NamespaceErrors:
		return "e"
	default:
		return ""
	}
}

// String returns the prefix, or "none".
func (ns Namespace) String() string {
	if p := ns.Prefix(); p != "" {
		return p
	}
	return "none"
}

// NamespaceFromURI maps a namespace URI back to its Namespace.
func NamespaceFromURI(uri string) (Namespace, bool) {
	switch uri {
	case TypesURI:
		return NamespaceTypes, true
	case MessagesURI:
		return NamespaceMessages, true
	case SoapURI:
		return NamespaceSoap, true
	case ErrorsURI:
		return NamespaceErrors, true
	case "":
		return NamespaceNone, true
	default:
		return NamespaceNone, false
	}
}
