// Package legacy imports document-store exports of properties and invitations.
//
// Cross-entity identifiers in the exports come in several shapes: plain
// strings, ObjectIDs, and reference documents. They are normalized to one
// canonical string here, at the boundary, so nothing past the import ever
// branches on how an identifier was stored.
package legacy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rentwise/rentwise-server/internal/id"
)

// ErrMissingID is returned when a required identifier is absent or null.
var ErrMissingID = errors.New("missing identifier")

// reference document keys that wrap an identifier.
var refKeys = []string{"$oid", "$id", "_id", "id"}

// CanonicalID returns the canonical string form of an identifier value.
// ObjectIDs and 24-character hex strings both become lowercase hex, so the
// same entity referenced either way compares equal.
func CanonicalID(v bson.RawValue) (string, error) {
	switch v.Type {
	case bsontype.String:
		return canonicalString(v.StringValue())
	case bsontype.ObjectID:
		return v.ObjectID().Hex(), nil
	case bsontype.EmbeddedDocument:
		doc := v.Document()
		for _, key := range refKeys {
			if inner, err := doc.LookupErr(key); err == nil {
				return CanonicalID(inner)
			}
		}
		return "", fmt.Errorf("reference document has no id field")
	case bsontype.Null, bsontype.Undefined, 0:
		return "", ErrMissingID
	default:
		return "", fmt.Errorf("unsupported identifier type %s", v.Type)
	}
}

// OptionalID is CanonicalID for fields that may be absent.
func OptionalID(v bson.RawValue) (string, error) {
	s, err := CanonicalID(v)
	if errors.Is(err, ErrMissingID) {
		return "", nil
	}
	return s, err
}

func canonicalString(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrMissingID
	}
	if oid, err := primitive.ObjectIDFromHex(strings.ToLower(s)); err == nil {
		return oid.Hex(), nil
	}
	if !id.Valid(s) {
		return "", fmt.Errorf("identifier %q is not in canonical form", s)
	}
	return s, nil
}

// canonicalTime reads a timestamp stored as a BSON date or an RFC 3339 string.
// Absent values yield fallback.
func canonicalTime(v bson.RawValue, fallback time.Time) (time.Time, error) {
	switch v.Type {
	case bsontype.DateTime:
		return v.Time().UTC(), nil
	case bsontype.Timestamp:
		t, _ := v.Timestamp()
		return time.Unix(int64(t), 0).UTC(), nil
	case bsontype.String:
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(v.StringValue()))
		if err != nil {
			return time.Time{}, fmt.Errorf("parse time: %w", err)
		}
		return t.UTC(), nil
	case bsontype.Null, bsontype.Undefined, 0:
		return fallback, nil
	default:
		return time.Time{}, fmt.Errorf("unsupported time type %s", v.Type)
	}
}

// optionalTime is canonicalTime for nullable timestamps.
func optionalTime(v bson.RawValue) (*time.Time, error) {
	if v.Type == 0 || v.Type == bsontype.Null || v.Type == bsontype.Undefined {
		return nil, nil
	}
	t, err := canonicalTime(v, time.Time{})
	if err != nil {
		return nil, err
	}
	return &t, nil
}
