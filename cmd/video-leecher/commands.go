package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/r3labs/diff/v3"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-leecher"
	"github.com/alanbriolat/video-leecher/internal/catalog"
	"github.com/alanbriolat/video-leecher/internal/prefs"
	"github.com/alanbriolat/video-leecher/internal/search"
	"github.com/alanbriolat/video-leecher/internal/session"
)

var errNoQuery = errors.New("one of --channel, --url or --id is required")

func importVideos(c *cli.Context, s *services) error {
	if c.NArg() == 0 {
		return requireArgs(c, 1)
	}
	for _, path := range c.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var entries []catalog.Entry
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("%v: %w", path, err)
		}
		if err := s.catalog.Import(c.Context, entries...); err != nil {
			return fmt.Errorf("%v: %w", path, err)
		}
		fmt.Printf("Imported %d videos from %v\n", len(entries), path)
	}
	return nil
}

// queryFromFlags builds the search query from the search flags, falling back to fallbackIDs and then to the last
// searched channel.
func queryFromFlags(c *cli.Context, s *services, fallbackIDs ...string) (search.Query, error) {
	p := s.prefs.Current()
	q := search.Query{Limit: p.SearchLimit}
	if c.IsSet("limit") {
		q.Limit = c.Int("limit")
	}
	switch {
	case c.IsSet("channel"):
		q.Type, q.Channel = search.QueryChannel, c.String("channel")
		if err := s.prefs.Set("search_channel_name", q.Channel); err != nil {
			return q, err
		}
	case c.IsSet("url"):
		q.Type, q.URLs = search.QueryURLs, c.StringSlice("url")
	case c.IsSet("id") || len(fallbackIDs) > 0:
		q.Type = search.QueryIDs
		for _, id := range append(c.StringSlice("id"), fallbackIDs...) {
			q.IDs = append(q.IDs, video_leecher.VideoID(id))
		}
	case p.SearchChannelName != "":
		q.Type, q.Channel = search.QueryChannel, p.SearchChannelName
	default:
		return q, errNoQuery
	}
	return q, nil
}

func runSearch(c *cli.Context, s *services, fallbackIDs ...string) (*search.Result, error) {
	q, err := queryFromFlags(c, s, fallbackIDs...)
	if err != nil {
		return nil, err
	}
	result, err := s.source.Search(c.Context, q)
	if err != nil {
		return nil, err
	}
	if result.Failures != nil {
		s.console.ShowError(c.Context, result.Failures)
	}
	if len(result.Videos) == 0 && result.Suggestion != "" {
		s.console.Notify(fmt.Sprintf("No videos found. Did you mean %q?", result.Suggestion))
	}
	return result, nil
}

func searchVideos(c *cli.Context, s *services) error {
	result, err := runSearch(c, s)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCHANNEL\tRECORDED\tLENGTH\tTITLE")
	for _, v := range result.Videos {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n", v.ID, v.Channel, v.RecordedAt.Format(time.DateOnly), v.Length, v.Title)
	}
	return w.Flush()
}

func downloadAll(c *cli.Context, s *services) error {
	if _, err := runSearch(c, s); err != nil {
		return err
	}
	return s.results.DownloadAll(c.Context)
}

func downloadOne(c *cli.Context, s *services) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	id := c.Args().First()
	if _, err := runSearch(c, s, id); err != nil {
		return err
	}
	return s.results.Download(c.Context, video_leecher.VideoID(id))
}

func viewVideo(c *cli.Context, s *services) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	id := c.Args().First()
	if _, err := runSearch(c, s, id); err != nil {
		return err
	}
	return s.results.View(c.Context, video_leecher.VideoID(id))
}

func showPreferences(_ *cli.Context, s *services) error {
	p := s.prefs.Current()
	data, err := json.MarshalIndent(&p, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func setPreference(c *cli.Context, s *services) error {
	if err := requireArgs(c, 2); err != nil {
		return err
	}
	key := c.Args().Get(0)
	err := s.prefs.Set(key, c.Args().Get(1))
	if errors.Is(err, prefs.ErrUnknownKey) {
		return fmt.Errorf("%w (known keys: %v)", err, strings.Join(prefs.Keys(), ", "))
	}
	return err
}

func listFavourites(_ *cli.Context, s *services) error {
	for _, channel := range s.prefs.Current().SearchFavouriteChannels {
		fmt.Println(channel)
	}
	return nil
}

func addFavourite(c *cli.Context, s *services) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	return s.prefs.AddFavourite(c.Args().First())
}

func removeFavourite(c *cli.Context, s *services) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	return s.prefs.RemoveFavourite(c.Args().First())
}

func listQueue(_ *cli.Context, s *services) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tADDED\tPATH\tERROR")
	for _, d := range s.session.ListDownloads() {
		state, err := d.State()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\n",
			state.ID, state.Status, state.AddedAt.Local().Format(time.DateTime), state.Job.FullPath(), state.Error)
	}
	return w.Flush()
}

func removeFromQueue(c *cli.Context, s *services) error {
	if err := requireArgs(c, 1); err != nil {
		return err
	}
	return s.session.RemoveDownload(session.DownloadID(c.Args().First()))
}

// runQueue downloads the queue, showing a progress bar for the download in progress.
func runQueue(c *cli.Context, s *services) error {
	log := zap.S().Named("queue")
	names := make(map[session.DownloadID]string)
	for _, d := range s.session.ListDownloads() {
		if state, err := d.State(); err == nil {
			names[d.ID] = state.Job.Filename
		}
	}
	events, err := s.session.SubscribeProgress()
	if err != nil {
		return err
	}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var bar *progressbar.ProgressBar
		for event := range events.Receive() {
			switch e := event.(type) {
			case session.DownloadStarted:
				bar = progressbar.DefaultBytes(-1, names[e.Download().ID])
			case session.DownloadUpdated:
				if changes, err := diff.Diff(e.OldState.DownloadPersistentState, e.NewState.DownloadPersistentState); err == nil {
					for _, change := range changes {
						log.Debugf("%v: %v: %#v -> %#v", e.Download().ID, change.Path, change.From, change.To)
					}
				}
				if bar == nil {
					continue
				}
				if e.NewState.Expected > 0 && bar.GetMax64() != e.NewState.Expected {
					bar.ChangeMax64(e.NewState.Expected)
				}
				_ = bar.Set64(e.NewState.Downloaded)
			case session.DownloadStopped:
				if bar != nil {
					_ = bar.Finish()
					fmt.Println()
					bar = nil
				}
				if e.Err != nil {
					fmt.Printf("Failed: %v\n", e.Err)
				}
			case session.DownloadComplete:
				fmt.Printf("Saved %v\n", e.Path)
			}
		}
	}()

	err = s.session.RunQueue(c.Context)
	events.Close()
	wg.Wait()
	return err
}
