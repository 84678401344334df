// Package main provides a tool to seed a content graph database with test data.
//
// It creates users, posts with tags, comments, replies, likes and follows
// through the services, so every counter starts consistent.
//
// Usage:
//
//	DATA_PATH=~/contentgraph/db go run ./cmd/seed
//	DATA_PATH=~/contentgraph/db go run ./cmd/seed -users 50 -posts 10
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/Colorex-team/Colorex-System/internal/association"
	"github.com/Colorex-team/Colorex-System/internal/domain"
	"github.com/Colorex-team/Colorex-System/internal/fanout"
	"github.com/Colorex-team/Colorex-System/internal/pagination"
	"github.com/Colorex-team/Colorex-System/internal/service"
	"github.com/Colorex-team/Colorex-System/internal/store"
	"github.com/Colorex-team/Colorex-System/internal/tagindex"
)

var (
	numUsers    = flag.Int("users", 20, "Number of users to create")
	postsPer    = flag.Int("posts", 5, "Posts per user")
	commentsPer = flag.Int("comments", 3, "Maximum comments per post")
	followRatio = flag.Float64("follow-ratio", 0.3, "Probability that one user follows another")
)

var (
	words = []string{"marble", "granite", "garden", "bench", "statue", "sunset", "coast", "studio", "sketch", "mural"}
	tags  = []string{"art", "stone", "outdoor", "wip", "photo", "travel"}
)

func main() {
	flag.Parse()

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/contentgraph/db")
	}

	fmt.Printf("Opening database at: %s\n", dataPath)

	s, err := store.New(dataPath, nil, domain.StoreIndexes()...)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	tagIndex := tagindex.New(s, nil)
	registry := association.NewRegistry(s, nil)
	pages := pagination.New(s, pagination.Config{}, nil, nil, nil)
	users := service.NewUserService(s, nil)
	content := service.NewContentService(s, tagIndex, pages, fanout.New(s, fanout.DefaultConcurrency, nil), nil, nil)
	social := service.NewSocialService(s, registry, pages, nil, nil)

	userIDs := make([]string, 0, *numUsers)
	for n := range *numUsers {
		user, err := users.CreateUser(ctx, "", fmt.Sprintf("seed_user_%03d", n), "")
		if err != nil {
			log.Fatalf("Failed to create user: %v", err)
		}
		userIDs = append(userIDs, user.ID)
	}
	fmt.Printf("Created %d users\n", len(userIDs))

	follows := 0
	for _, follower := range userIDs {
		for _, followee := range userIDs {
			if follower == followee || rng.Float64() > *followRatio {
				continue
			}
			if _, err := social.Follow(ctx, follower, followee); err != nil {
				log.Printf("Failed to follow: %v", err)
				continue
			}
			follows++
		}
	}
	fmt.Printf("Created %d follows\n", follows)

	var posts, comments, replies, likes int
	for _, owner := range userIDs {
		for range *postsPer {
			post, err := content.CreatePost(ctx, owner, service.CreatePostInput{
				Title:    randomTitle(rng),
				Body:     "Seeded post",
				PostType: "image",
				Tags:     randomTags(rng),
			})
			if err != nil {
				log.Printf("Failed to create post: %v", err)
				continue
			}
			posts++

			for range rng.Intn(*commentsPer + 1) {
				commenter := userIDs[rng.Intn(len(userIDs))]
				comment, err := content.CreateComment(ctx, commenter, post.ID, randomTitle(rng), "")
				if err != nil {
					log.Printf("Failed to create comment: %v", err)
					continue
				}
				comments++

				if rng.Intn(2) == 0 {
					if _, err := content.CreateReply(ctx, owner, comment.ID, "Thanks!", ""); err == nil {
						replies++
					}
				}
				if _, err := social.Like(ctx, domain.KindComment, owner, comment.ID); err == nil {
					likes++
				}
			}

			for range rng.Intn(len(userIDs)/2 + 1) {
				fan := userIDs[rng.Intn(len(userIDs))]
				res, err := social.Like(ctx, domain.KindPost, fan, post.ID)
				if err == nil && res.Changed {
					likes++
				}
			}
		}
	}

	fmt.Printf("Created %d posts, %d comments, %d replies, %d likes\n", posts, comments, replies, likes)
	fmt.Println("Seeding complete.")
}

func randomTitle(rng *rand.Rand) string {
	return words[rng.Intn(len(words))] + " " + words[rng.Intn(len(words))]
}

func randomTags(rng *rand.Rand) []string {
	n := rng.Intn(3)
	picked := make([]string, 0, n)
	for range n {
		picked = append(picked, tags[rng.Intn(len(tags))])
	}
	return picked
}
