// Package main provides a read-only inspection tool for a content graph database.
//
// It prints the size of every collection and compares each denormalized
// counter with the records it summarizes.
//
// Usage:
//
//	DATA_PATH=~/contentgraph/db go run ./cmd/dbinspect
//	go run ./cmd/dbinspect -data-path ./data -show 20
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/Colorex-team/Colorex-System/internal/domain"
	"github.com/Colorex-team/Colorex-System/internal/store"
)

var (
	dataPath = flag.String("data-path", "", "Badger data directory (default: $DATA_PATH)")
	show     = flag.Int("show", 10, "Maximum drifted documents to list per counter")
)

// drift is one document whose stored counter differs from its records.
type drift struct {
	id       string
	stored   int64
	recorded int64
}

func main() {
	flag.Parse()

	path := *dataPath
	if path == "" {
		path = os.Getenv("DATA_PATH")
	}
	if path == "" {
		log.Fatal("No data path given: set -data-path or DATA_PATH")
	}

	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	docs, err := loadAll(db)
	if err != nil {
		log.Fatalf("Failed to read database: %v", err)
	}

	fmt.Println("=== Collections ===")
	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Printf("  %-20s %d\n", name, len(docs[name]))
	}
	fmt.Println()

	fmt.Println("=== Counter drift ===")
	total := 0
	total += report("posts.likeCount", docs[domain.CollectionPosts], domain.FieldLikeCount,
		countBy(docs[domain.CollectionPostLikes], domain.FieldTargetID))
	total += report("comments.likeCount", docs[domain.CollectionComments], domain.FieldLikeCount,
		countBy(docs[domain.CollectionCommentLikes], domain.FieldTargetID))
	total += report("replies.likeCount", docs[domain.CollectionReplies], domain.FieldLikeCount,
		countBy(docs[domain.CollectionReplyLikes], domain.FieldTargetID))
	total += report("users.followersCount", docs[domain.CollectionUsers], domain.FieldFollowersCount,
		countBy(docs[domain.CollectionFollows], domain.FieldTargetID))
	total += report("users.followingCount", docs[domain.CollectionUsers], domain.FieldFollowingCount,
		countBy(docs[domain.CollectionFollows], domain.FieldSubjectID))
	total += report("hashtags.postCount", docs[domain.CollectionHashtags], domain.FieldPostCount,
		countTags(docs[domain.CollectionPosts]))
	fmt.Println()

	fmt.Println("=== Orphans ===")
	orphans := 0
	orphans += reportOrphans("comments without post", docs[domain.CollectionComments], domain.FieldParentID, docs[domain.CollectionPosts])
	orphans += reportOrphans("replies without comment", docs[domain.CollectionReplies], domain.FieldParentID, docs[domain.CollectionComments])
	orphans += reportOrphans("post likes without post", docs[domain.CollectionPostLikes], domain.FieldTargetID, docs[domain.CollectionPosts])
	orphans += reportOrphans("comment likes without comment", docs[domain.CollectionCommentLikes], domain.FieldTargetID, docs[domain.CollectionComments])
	orphans += reportOrphans("reply likes without reply", docs[domain.CollectionReplyLikes], domain.FieldTargetID, docs[domain.CollectionReplies])
	orphans += reportOrphans("follows without target", docs[domain.CollectionFollows], domain.FieldTargetID, docs[domain.CollectionUsers])
	fmt.Println()

	if total == 0 && orphans == 0 {
		fmt.Println("All counters consistent, no orphans.")
		return
	}
	fmt.Printf("%d drifted counters, %d orphans. Run the maintenance recount and sweep to repair.\n", total, orphans)
	os.Exit(1)
}

// loadAll reads every document, grouped by collection.
func loadAll(db *badger.DB) (map[string]map[string]store.Document, error) {
	docs := make(map[string]map[string]store.Document)
	prefix := []byte("doc:")

	err := db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			collection, docID, ok := strings.Cut(strings.TrimPrefix(string(item.Key()), "doc:"), ":")
			if !ok {
				continue
			}

			err := item.Value(func(val []byte) error {
				dec := json.NewDecoder(bytes.NewReader(val))
				dec.UseNumber()
				var doc store.Document
				if err := dec.Decode(&doc); err != nil {
					return fmt.Errorf("decode %s/%s: %w", collection, docID, err)
				}
				if docs[collection] == nil {
					docs[collection] = make(map[string]store.Document)
				}
				docs[collection][docID] = doc
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return docs, err
}

func countBy(records map[string]store.Document, field string) map[string]int64 {
	counts := make(map[string]int64)
	for _, doc := range records {
		counts[doc.String(field)]++
	}
	return counts
}

func countTags(posts map[string]store.Document) map[string]int64 {
	counts := make(map[string]int64)
	for _, doc := range posts {
		for _, tagID := range doc.Strings(domain.FieldTagIDs) {
			counts[tagID]++
		}
	}
	return counts
}

// report prints the documents whose field differs from the recorded count
// and returns how many there are.
func report(name string, owners map[string]store.Document, field string, recorded map[string]int64) int {
	var drifts []drift
	for docID, doc := range owners {
		if stored := doc.Int(field); stored != recorded[docID] {
			drifts = append(drifts, drift{id: docID, stored: stored, recorded: recorded[docID]})
		}
	}
	slices.SortFunc(drifts, func(a, b drift) int { return strings.Compare(a.id, b.id) })

	fmt.Printf("  %-22s checked %d, drifted %d\n", name, len(owners), len(drifts))
	for i, d := range drifts {
		if i == *show {
			fmt.Printf("    ... %d more\n", len(drifts)-i)
			break
		}
		fmt.Printf("    %s: stored %d, records %d\n", d.id, d.stored, d.recorded)
	}
	return len(drifts)
}

func reportOrphans(name string, children map[string]store.Document, field string, parents map[string]store.Document) int {
	n := 0
	for _, doc := range children {
		if _, ok := parents[doc.String(field)]; !ok {
			n++
		}
	}
	fmt.Printf("  %-30s %d\n", name, n)
	return n
}
