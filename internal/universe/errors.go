package universe

import "errors"

// errUnknownReferenceKind marks a reference record whose kind field is not
// one of "method", "field", "type", or "string".
var errUnknownReferenceKind = errors.New("unknown reference kind")
