package revue

import (
	"fmt"
)

// ExportKeys is the positional layout of a tuple returned by GET exports.
var ExportKeys = []string{
	"id",
	"subscribed_file_name",
	"subscribed_file_size",
	"subscribed_content_type",
	"unsubscribed_file_name",
	"unsubscribed_file_size",
	"unsubscribed_content_type",
}

// ExportRecord is the keyed form of an export tuple.
type ExportRecord struct {
	ID                      int64  `json:"id"`
	SubscribedFileName      string `json:"subscribed_file_name"`
	SubscribedFileSize      int64  `json:"subscribed_file_size"`
	SubscribedContentType   string `json:"subscribed_content_type"`
	UnsubscribedFileName    string `json:"unsubscribed_file_name"`
	UnsubscribedFileSize    int64  `json:"unsubscribed_file_size"`
	UnsubscribedContentType string `json:"unsubscribed_content_type"`
}

// ReshapeExports maps a JSON array of export tuples onto keyed objects using ExportKeys.
//
// Values are carried over positionally without conversion. The body must be an
// array whose elements are arrays of exactly len(ExportKeys) values; anything
// else fails with ErrShapeMismatch.
func ReshapeExports(body []byte) ([]byte, error) {
	doc, err := ParseValue(body)
	if err != nil {
		return nil, err
	}
	if doc.Kind() != KindArray {
		return nil, fmt.Errorf("%w: exports payload is a %s, want array", ErrShapeMismatch, doc.Kind())
	}

	records := make([]Value, 0, doc.Len())
	for i, tuple := range doc.Elements() {
		if tuple.Kind() != KindArray {
			return nil, fmt.Errorf("%w: export %d is a %s, want array", ErrShapeMismatch, i, tuple.Kind())
		}
		if tuple.Len() != len(ExportKeys) {
			return nil, fmt.Errorf("%w: export %d has %d values, want %d", ErrShapeMismatch, i, tuple.Len(), len(ExportKeys))
		}

		members := make([]Member, len(ExportKeys))
		for j, key := range ExportKeys {
			members[j] = Member{Key: key, Value: tuple.Index(j)}
		}
		records = append(records, ObjectValue(members...))
	}

	return ArrayValue(records...).MarshalJSON()
}
