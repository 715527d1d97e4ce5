package main

import (
	"context"
	"flag"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/em3ndez/go-airlock/v1/asynclock"
)

var (
	goroutines = flag.Int("goroutines", 64, "Number of concurrent goroutines contending for the lock")
	duration   = flag.Duration("duration", 10*time.Second, "Duration of the stress run")
)

func main() {
	flag.Parse()

	l := asynclock.New()
	var acquisitions atomic.Int64
	var inside atomic.Int32
	var violations atomic.Int64

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	log.Printf("stressing with %d goroutines for %s", *goroutines, *duration)
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < *goroutines; i++ {
		g.Go(func() error {
			for ctx.Err() == nil {
				if err := <-asynclock.Run(l, func() error {
					if inside.Add(1) != 1 {
						violations.Add(1)
					}
					inside.Add(-1)
					acquisitions.Add(1)
					return nil
				}); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}

	elapsed := time.Since(start)
	total := acquisitions.Load()
	log.Printf("%d acquisitions in %s (%.0f/s)", total, elapsed.Round(time.Millisecond), float64(total)/elapsed.Seconds())
	if v := violations.Load(); v != 0 {
		log.Fatalf("MUTUAL EXCLUSION VIOLATED %d times", v)
	}
	log.Println("no mutual exclusion violations")
}
