package main

import (
	"context"
	"flag"
	"log"
	"time"

	"novelhub/internal/normalize"
	"novelhub/internal/novel"
	"novelhub/internal/spider"
	"novelhub/pkg/database"
)

// crawl ingests a single URL straight into the database, no API server and
// no job row. Handy for seeding a fresh database or debugging a spider.
func main() {
	src := flag.String("url", "", "source URL to crawl")
	timeout := flag.Duration("timeout", 10*time.Minute, "crawl timeout")
	flag.Parse()
	if *src == "" {
		log.Fatal("usage: crawl -url <source url>")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	registry := spider.NewRegistry()
	registry.Register(spider.NewRoyalRoad(), "royalroad.com", "www.royalroad.com")
	registry.Register(spider.NewPixiv(), "pixiv.net", "www.pixiv.net")

	sp, err := registry.Resolve(*src)
	if err != nil {
		log.Fatalf("resolve spider: %v", err)
	}

	raw, err := sp.Extract(ctx, *src, "")
	if err != nil {
		log.Fatalf("crawl failed: %v", err)
	}

	doc, err := normalize.New().Document(raw)
	if err != nil {
		log.Fatalf("normalize failed: %v", err)
	}

	if err := novel.NewRepo(db).SaveDocument(ctx, doc); err != nil {
		log.Fatalf("save failed: %v", err)
	}

	log.Printf("saved %q: %d chapters, %d words", doc.Title, len(doc.Chapters), doc.WordCount)
}
