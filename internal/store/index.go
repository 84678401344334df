package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// WithIndex maintains an equality index on the given fields of a collection.
//
// Scalar string fields serve == and in filters; string elements of array
// fields serve array-contains and array-contains-any. Index entries are
// written in the same transaction as the document, so a query driven by the
// index sees exactly the documents a full scan would.
func WithIndex(collection string, fields ...string) Option {
	return func(s *Store) {
		if s.indexes == nil {
			s.indexes = make(map[string][]string)
		}
		merged := append(s.indexes[collection], fields...)
		slices.Sort(merged)
		s.indexes[collection] = slices.Compact(merged)
	}
}

// indexedFields returns the indexed fields of a collection.
func (s *Store) indexedFields(collection string) []string {
	return s.indexes[collection]
}

func (s *Store) isIndexed(collection, field string) bool {
	_, found := slices.BinarySearch(s.indexes[collection], field)
	return found
}

// indexTerm is one index entry of a document.
type indexTerm struct {
	field string
	kind  byte
	value string
}

// indexTerms lists the index entries a document produces.
func indexTerms(fields []string, doc Document) []indexTerm {
	var terms []indexTerm
	for _, field := range fields {
		v, ok := doc[field]
		if !ok {
			continue
		}
		if str, ok := indexString(v); ok {
			terms = append(terms, indexTerm{field: field, kind: indexScalar, value: str})
			continue
		}
		for _, elem := range indexElements(v) {
			terms = append(terms, indexTerm{field: field, kind: indexElement, value: elem})
		}
	}
	return terms
}

// indexString returns v when it is a string usable as an index value.
// Named string types count; values holding the terminator byte are not indexed.
func indexString(v any) (string, bool) {
	var str string
	switch t := v.(type) {
	case string:
		str = t
	default:
		rv := reflect.ValueOf(v)
		if !rv.IsValid() || rv.Kind() != reflect.String {
			return "", false
		}
		str = rv.String()
	}
	if strings.Contains(str, indexValueEnd) {
		return "", false
	}
	return str, true
}

func indexElements(v any) []string {
	var elems []string
	add := func(e any) {
		if str, ok := indexString(e); ok && !slices.Contains(elems, str) {
			elems = append(elems, str)
		}
	}
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			add(e)
		}
	case []string:
		for _, e := range t {
			add(e)
		}
	}
	return elems
}

// reindex replaces the index entries of prev with those of next.
// A nil document stands for an absent one.
func (tx *Txn) reindex(collection, id string, prev, next Document) error {
	fields := tx.store.indexedFields(collection)
	if len(fields) == 0 {
		return nil
	}

	oldTerms := indexTerms(fields, prev)
	newTerms := indexTerms(fields, next)

	for _, t := range oldTerms {
		if slices.Contains(newTerms, t) {
			continue
		}
		if err := tx.txn.Delete(indexEntryKey(collection, t.field, t.kind, t.value, id)); err != nil {
			return txnWriteError(err)
		}
	}
	for _, t := range newTerms {
		if slices.Contains(oldTerms, t) {
			continue
		}
		if err := tx.txn.Set(indexEntryKey(collection, t.field, t.kind, t.value, id), []byte{}); err != nil {
			return txnWriteError(err)
		}
	}
	return nil
}

// lookup returns the IDs of documents whose field holds value as kind, in key order.
func (tx *Txn) lookup(ctx context.Context, collection, field string, kind byte, value string) ([]string, error) {
	prefix := indexValuePrefix(collection, field, kind, value)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	it := tx.txn.NewIterator(opts)
	defer it.Close()

	var ids []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ids = append(ids, string(it.Item().Key()[len(prefix):]))
	}
	return ids, nil
}

// ensureIndexes rebuilds the index entries of every collection whose
// indexed field list differs from the one recorded in the database.
// It runs before the store is handed out, so no writer races the rebuild.
func (s *Store) ensureIndexes() error {
	for collection, fields := range s.indexes {
		want := []byte(strings.Join(fields, ","))

		var have []byte
		err := s.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(indexMetaKey(collection))
			if err != nil {
				return err
			}
			have, err = item.ValueCopy(nil)
			return err
		})
		if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("read index metadata of %s: %w", collection, err)
		}
		if bytes.Equal(have, want) {
			continue
		}

		n, err := s.rebuildIndex(collection, fields, want)
		if err != nil {
			return fmt.Errorf("rebuild index of %s: %w", collection, err)
		}
		if s.logger != nil {
			s.logger.Info("collection index rebuilt", "collection", collection, "fields", string(want), "documents", n)
		}
	}
	return nil
}

func (s *Store) rebuildIndex(collection string, fields []string, meta []byte) (int, error) {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		stale := indexCollectionPrefix(collection)
		keyOpts := badger.DefaultIteratorOptions
		keyOpts.Prefix = stale
		keyOpts.PrefetchValues = false

		old := txn.NewIterator(keyOpts)
		for old.Seek(stale); old.ValidForPrefix(stale); old.Next() {
			if err := wb.Delete(old.Item().KeyCopy(nil)); err != nil {
				old.Close()
				return err
			}
		}
		old.Close()

		prefix := collectionPrefix(collection)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			docID := idFromKey(item.Key(), prefix)

			var doc Document
			err := item.Value(func(val []byte) error {
				var decodeErr error
				doc, decodeErr = decodeDocument(val)
				return decodeErr
			})
			if err != nil {
				return err
			}

			for _, t := range indexTerms(fields, doc) {
				if err := wb.Set(indexEntryKey(collection, t.field, t.kind, t.value, docID), []byte{}); err != nil {
					return err
				}
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := wb.Set(indexMetaKey(collection), meta); err != nil {
		return 0, err
	}
	return n, wb.Flush()
}
