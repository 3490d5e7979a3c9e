package results

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"skatescore/internal/config"
	"skatescore/internal/logging"
	"skatescore/internal/pipeline"
	"skatescore/internal/util"
)

// EventMeta names the competition the downloaded protocols belong to.
// An empty Name falls back to the index page title.
type EventMeta struct {
	Name     string
	Season   string
	Location string
	Date     string
}

type SyncResult struct {
	Index      Index
	Tasks      []pipeline.Task
	Downloaded int
	Reused     int
}

type SyncService struct {
	client *Client
	dir    string
	log    *slog.Logger
}

func NewSyncService(client *Client, cfg config.Config, log *slog.Logger) *SyncService {
	if log == nil {
		log = logging.Discard()
	}
	return &SyncService{client: client, dir: cfg.DownloadDir, log: log}
}

var reUnsafePath = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Sync fetches the index, downloads every protocol not already on disk and
// returns one import task per protocol, in index order.
func (s *SyncService) Sync(ctx context.Context, indexURL string, meta EventMeta) (SyncResult, error) {
	if strings.TrimSpace(meta.Season) == "" {
		return SyncResult{}, errors.New("season is required")
	}
	page, err := s.client.Fetch(ctx, indexURL)
	if err != nil {
		return SyncResult{}, fmt.Errorf("fetch index: %w", err)
	}
	idx, err := ParseIndex(indexURL, page)
	if err != nil {
		return SyncResult{}, err
	}

	name := strings.TrimSpace(meta.Name)
	if name == "" {
		name = idx.Title
	}
	if name == "" {
		return SyncResult{}, errors.New("competition name is required and the index has no title")
	}

	res := SyncResult{Index: idx}
	eventDir := filepath.Join(s.dir, reUnsafePath.ReplaceAllString(name, "_"))
	for _, p := range idx.Protocols {
		dest := filepath.Join(eventDir, reUnsafePath.ReplaceAllString(p.FileName, "_"))
		if _, err := os.Stat(dest); err == nil {
			res.Reused++
		} else {
			if err := s.client.Download(ctx, p.URL, dest); err != nil {
				return res, fmt.Errorf("download %s: %w", p.URL, err)
			}
			res.Downloaded++
			s.log.Info("protocol downloaded", "url", p.URL, "path", dest)
		}
		res.Tasks = append(res.Tasks, pipeline.Task{
			DocumentPath:    dest,
			CompetitionName: name,
			Season:          meta.Season,
			ProgramType:     p.ProgramType,
			Category:        p.Category,
			Location:        util.OptionalString(meta.Location),
			Date:            util.OptionalString(meta.Date),
		})
	}
	return res, nil
}
