package voter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/securevote-api/internal/domain"
	"github.com/securevote-api/internal/infrastructure/spreadsheet"
	"golang.org/x/sync/errgroup"
)

type Service interface {
	// Import upserts every roster row from an .xlsx workbook.
	Import(ctx context.Context, r io.Reader) (*domain.ImportResult, error)
	// ImportFile imports from path. A missing file is not an error.
	ImportFile(ctx context.Context, path string) (*domain.ImportResult, error)
	Dashboard(ctx context.Context) (*domain.DashboardStats, error)
}

type voterStore interface {
	UpsertEligible(ctx context.Context, v domain.EligibleVoter) (bool, error)
	CountEligible(ctx context.Context) (int, error)
	CountRegistered(ctx context.Context) (int, error)
}

type ballotCounter interface {
	Count(ctx context.Context) (int, error)
}

type electionLister interface {
	List(ctx context.Context) ([]domain.Election, error)
}

type ServiceDeps struct {
	Voters    voterStore
	Ballots   ballotCounter
	Elections electionLister
}

type service struct {
	voters    voterStore
	ballots   ballotCounter
	elections electionLister
}

func NewService(deps ServiceDeps) Service {
	return &service{voters: deps.Voters, ballots: deps.Ballots, elections: deps.Elections}
}

func (s *service) Import(ctx context.Context, r io.Reader) (*domain.ImportResult, error) {
	roster, err := spreadsheet.ParseRoster(r)
	if err != nil {
		return nil, err
	}
	res := &domain.ImportResult{Skipped: roster.Skipped}
	for _, v := range roster.Voters {
		created, err := s.voters.UpsertEligible(ctx, v)
		if err != nil {
			return res, err
		}
		if created {
			res.Added++
		} else {
			res.Updated++
		}
	}
	slog.Info("roster imported", "added", res.Added, "updated", res.Updated, "skipped", res.Skipped)
	return res, nil
}

func (s *service) ImportFile(ctx context.Context, path string) (*domain.ImportResult, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("roster file not found, skipping import", "path", path)
		return &domain.ImportResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()
	return s.Import(ctx, f)
}

func (s *service) Dashboard(ctx context.Context) (*domain.DashboardStats, error) {
	var stats domain.DashboardStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalEligible, err = s.voters.CountEligible(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalRegistered, err = s.voters.CountRegistered(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalVotes, err = s.ballots.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.Elections, err = s.elections.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}
