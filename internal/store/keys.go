package store

// Key layout:
//
//	doc:{collection}:{id}                           → Document JSON
//	idx:{collection}:{field}:{kind}:{value}\x00{id} → empty
//	meta:index:{collection}                         → indexed field list
//
// Collections are enumerated with a prefix scan over doc:{collection}: so the
// separator is forbidden in collection names. IDs may contain it.
//
// Index kind is 's' for a scalar string field and 'e' for a string element of
// an array field, so equality and array-contains lookups stay exact.
const (
	docPrefix     = "doc:"
	indexPrefix   = "idx:"
	metaIndexKey  = "meta:index:"
	keySeparator  = ":"
	indexValueEnd = "\x00"
	indexScalar   = 's'
	indexElement  = 'e'
)

// docKey constructs the primary key of a document.
// A fresh slice is returned because Badger retains keys passed to Set until commit.
func docKey(collection, id string) []byte {
	buf := make([]byte, 0, len(docPrefix)+len(collection)+len(keySeparator)+len(id))
	buf = append(buf, docPrefix...)
	buf = append(buf, collection...)
	buf = append(buf, keySeparator...)
	buf = append(buf, id...)
	return buf
}

// collectionPrefix returns the scan prefix of a collection.
func collectionPrefix(collection string) []byte {
	buf := make([]byte, 0, len(docPrefix)+len(collection)+len(keySeparator))
	buf = append(buf, docPrefix...)
	buf = append(buf, collection...)
	buf = append(buf, keySeparator...)
	return buf
}

// idFromKey strips the collection prefix from a primary key.
func idFromKey(key []byte, prefix []byte) string {
	return string(key[len(prefix):])
}

// indexValuePrefix returns the scan prefix of every document whose field
// holds value as the given index kind.
func indexValuePrefix(collection, field string, kind byte, value string) []byte {
	buf := make([]byte, 0, len(indexPrefix)+len(collection)+len(field)+len(value)+6)
	buf = append(buf, indexPrefix...)
	buf = append(buf, collection...)
	buf = append(buf, keySeparator...)
	buf = append(buf, field...)
	buf = append(buf, keySeparator...)
	buf = append(buf, kind)
	buf = append(buf, keySeparator...)
	buf = append(buf, value...)
	buf = append(buf, indexValueEnd...)
	return buf
}

// indexEntryKey constructs the index key of one (field, value) pair of a document.
func indexEntryKey(collection, field string, kind byte, value, id string) []byte {
	return append(indexValuePrefix(collection, field, kind, value), id...)
}

// indexCollectionPrefix returns the prefix of every index entry of a collection.
func indexCollectionPrefix(collection string) []byte {
	return []byte(indexPrefix + collection + keySeparator)
}

func indexMetaKey(collection string) []byte {
	return []byte(metaIndexKey + collection)
}
