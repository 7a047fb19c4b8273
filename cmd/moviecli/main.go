// Command moviecli is a terminal front end for movie search. Each line read
// from stdin is taken as the current contents of the search box.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kdimtricp/cinesearch/internal/boltstore"
	"github.com/kdimtricp/cinesearch/internal/cachestore"
	"github.com/kdimtricp/cinesearch/internal/config"
	"github.com/kdimtricp/cinesearch/internal/debounce"
	"github.com/kdimtricp/cinesearch/internal/logging"
	"github.com/kdimtricp/cinesearch/internal/search"
	"github.com/kdimtricp/cinesearch/internal/task"
	"github.com/kdimtricp/cinesearch/internal/tmdb"
	"github.com/kdimtricp/cinesearch/internal/trending"
)

func main() {
	var (
		boltPath  = flag.String("bolt", "", "Persist counters in this bolt file instead of memory")
		dropStale = flag.Bool("drop-stale", false, "Ignore results of searches superseded by newer input")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, "text")

	var store cachestore.Store = cachestore.NewMemory()
	if *boltPath != "" {
		store, err = boltstore.Open(*boltPath)
		if err != nil {
			log.Fatal("Failed to open bolt store:", err)
		}
	}
	defer store.Close()

	client := tmdb.NewClient(cfg.TMDbAPIKey,
		tmdb.WithBaseURL(cfg.TMDbBaseURL),
		tmdb.WithImageBaseURL(cfg.TMDbImageBaseURL),
	)
	runner := task.NewRunner(logger, task.WithTimeout(cfg.TaskTimeout))

	ui := &terminal{out: os.Stdout}
	s := &session{
		search:   search.NewResolver(client, store, runner, logger, nil),
		trending: trending.NewResolver(client, store, runner, logger, trending.WithLimit(cfg.TrendingLimit), trending.WithPersistLimit(cfg.PersistLimit)),
		tracker:  search.NewTracker(ui.showSearch),
		ui:       ui,
	}
	s.tracker.DropStale = *dropStale

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.start(ctx); err != nil {
		log.Fatal(err)
	}
	s.readInput(ctx, os.Stdin, cfg.Debounce)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.TaskTimeout)
	defer cancel()
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Warn("background tasks did not drain", "error", err)
	}
}

type session struct {
	search   *search.Resolver
	trending *trending.Resolver
	tracker  *search.Tracker
	ui       *terminal

	inflight sync.WaitGroup
}

// start shows the discovery feed and the trending list, resolved together.
func (s *session) start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticket := s.tracker.Begin()
		s.tracker.Finish(ticket, s.search.Resolve(ctx, ""))
		return nil
	})
	g.Go(func() error {
		s.ui.showTrending(s.trending.Resolve(ctx))
		return nil
	})
	return g.Wait()
}

// readInput feeds every line through the debouncer until EOF or ctx ends,
// then waits for searches already started. The debouncer is drained first so
// no search can begin once the wait starts.
func (s *session) readInput(ctx context.Context, r io.Reader, wait time.Duration) {
	d := debounce.New(wait, func(query string) { s.resolve(ctx, query) })

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			d.Stop()
			d.Wait()
			break loop
		case line, ok := <-lines:
			if !ok {
				d.Close()
				break loop
			}
			d.Push(line)
		}
	}

	s.inflight.Wait()
}

// resolve starts a search without waiting on earlier ones. Results are applied
// in completion order.
func (s *session) resolve(ctx context.Context, query string) {
	s.inflight.Add(1)
	ticket := s.tracker.Begin()
	go func() {
		defer s.inflight.Done()
		s.tracker.Finish(ticket, s.search.Resolve(ctx, query))
	}()
}

type terminal struct {
	mu  sync.Mutex
	out io.Writer
}

func (t *terminal) showSearch(state search.State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch state.Status {
	case search.StatusLoading:
		fmt.Fprintln(t.out, "Searching...")
	case search.StatusFailed:
		fmt.Fprintf(t.out, "Error: %s\n", state.Message)
	case search.StatusSuccess:
		if len(state.Results) == 0 {
			fmt.Fprintln(t.out, "No movies found")
			return
		}
		fmt.Fprintf(t.out, "Results (%d):\n", len(state.Results))
		for _, m := range state.Results {
			if year := m.Year(); year != "" {
				fmt.Fprintf(t.out, "  %s (%s)\n", m.Title, year)
			} else {
				fmt.Fprintf(t.out, "  %s\n", m.Title)
			}
		}
	}
}

func (t *terminal) showTrending(result trending.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "Trending (%s):\n", result.Source)
	if len(result.Entries) == 0 {
		fmt.Fprintln(t.out, "  nothing yet")
		return
	}
	for i, e := range result.Entries {
		if e.Count > 0 {
			fmt.Fprintf(t.out, "  %2d. %s [%d searches]\n", i+1, e.Movie.Title, e.Count)
		} else {
			fmt.Fprintf(t.out, "  %2d. %s\n", i+1, e.Movie.Title)
		}
	}
}
