// Package seed fills a store with sample tours, users and reviews. Every
// write goes through the services, so tour ratings are maintained by the
// recompute trigger exactly as in production.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MinhajJamraiz/natours/internal/domain"
	"github.com/MinhajJamraiz/natours/internal/service"
)

var (
	adjectives = []string{"Forest", "Sea", "Snow", "City", "Park", "Desert", "Northern", "Sports", "Wine", "Star"}
	nouns      = []string{"Hiker", "Explorer", "Adventurer", "Wanderer", "Camper", "Taster", "Gazer", "Voyager"}
	reviews    = []string{
		"Unforgettable, the guides were wonderful.",
		"Good value, a little rushed on the last day.",
		"Breathtaking views from start to finish.",
		"Too crowded for my taste.",
		"Would book again in a heartbeat.",
	}
	difficulties = []string{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyDifficult}
	// Start locations as [lng, lat].
	starts = []domain.Location{
		{Type: "Point", Coordinates: []float64{-80.185942, 25.774772}, Description: "Miami, USA"},
		{Type: "Point", Coordinates: []float64{-106.822318, 39.190872}, Description: "Aspen, USA"},
		{Type: "Point", Coordinates: []float64{-115.570154, 51.178456}, Description: "Banff, CAN"},
		{Type: "Point", Coordinates: []float64{-118.803461, 34.006072}, Description: "California, USA"},
		{Type: "Point", Coordinates: []float64{-112.987418, 37.198125}, Description: "Utah, USA"},
	}
)

// Options sizes the data set.
type Options struct {
	Tours          int
	Users          int
	ReviewsPerTour int
	// Seed makes runs reproducible.
	Seed int64
	// Concurrency bounds parallel writes.
	Concurrency int
	Password    string
}

// DefaultOptions returns a small data set.
func DefaultOptions() Options {
	return Options{Tours: 9, Users: 20, ReviewsPerTour: 5, Seed: 1, Concurrency: 8, Password: "test1234"}
}

// Summary counts what was written.
type Summary struct {
	Tours    int
	Users    int
	Reviews  int
	TourIDs  []string
	Duration time.Duration
}

type plannedReview struct {
	tour, user int
	rating     float64
	text       string
}

// Run writes the data set. Reviews of one tour are written concurrently to
// exercise the rating recompute under contention.
func Run(ctx context.Context, svcs *service.Services, opts Options, l *slog.Logger) (Summary, error) {
	if opts.ReviewsPerTour > opts.Users {
		return Summary{}, fmt.Errorf("seed: %d reviews per tour need at least as many users, got %d", opts.ReviewsPerTour, opts.Users)
	}
	if opts.Tours > len(adjectives)*len(nouns) {
		return Summary{}, fmt.Errorf("seed: at most %d tours", len(adjectives)*len(nouns))
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	start := time.Now()
	rng := rand.New(rand.NewSource(opts.Seed))

	userIDs := make([]string, opts.Users)
	for i := range userIDs {
		name := fmt.Sprintf("Seed User%d", i+1)
		session, err := svcs.Users.Signup(ctx, &service.SignupInput{
			Name:            name,
			Email:           fmt.Sprintf("user%d@natours.seed", i+1),
			Password:        opts.Password,
			PasswordConfirm: opts.Password,
		})
		if err != nil {
			return Summary{}, fmt.Errorf("seed user %d: %w", i+1, err)
		}
		userIDs[i] = session.User.ID()
	}

	tourIDs := make([]string, opts.Tours)
	for i := range tourIDs {
		tour, err := svcs.Tours.Create(ctx, tourInput(i, rng))
		if err != nil {
			return Summary{}, fmt.Errorf("seed tour %d: %w", i+1, err)
		}
		tourIDs[i] = tour.ID()
	}

	// Plan every review up front; rng is not safe for concurrent use.
	var plan []plannedReview
	for t := range tourIDs {
		for _, u := range rng.Perm(opts.Users)[:opts.ReviewsPerTour] {
			plan = append(plan, plannedReview{
				tour:   t,
				user:   u,
				rating: float64(1 + rng.Intn(5)),
				text:   reviews[rng.Intn(len(reviews))],
			})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, p := range plan {
		g.Go(func() error {
			_, err := svcs.Reviews.Create(gctx, userIDs[p.user], tourIDs[p.tour], &service.ReviewInput{
				Review: &p.text,
				Rating: &p.rating,
			})
			if err != nil {
				return fmt.Errorf("seed review of tour %d: %w", p.tour+1, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	sum := Summary{
		Tours:    len(tourIDs),
		Users:    len(userIDs),
		Reviews:  len(plan),
		TourIDs:  tourIDs,
		Duration: time.Since(start),
	}
	l.InfoContext(ctx, "seed complete",
		slog.Int("tours", sum.Tours),
		slog.Int("users", sum.Users),
		slog.Int("reviews", sum.Reviews),
		slog.Duration("duration", sum.Duration),
	)
	return sum, nil
}

func tourInput(i int, rng *rand.Rand) *service.TourInput {
	name := fmt.Sprintf("The %s %s", adjectives[i%len(adjectives)], nouns[(i/len(adjectives))%len(nouns)])
	duration := float64(3 + rng.Intn(12))
	group := float64(5 + rng.Intn(20))
	difficulty := difficulties[i%len(difficulties)]
	price := float64(100 + rng.Intn(40)*50)
	summary := fmt.Sprintf("A %v day %s tour", duration, difficulty)
	cover := fmt.Sprintf("tour-%d-cover.jpg", i+1)
	startDates := []string{
		time.Date(2027, time.Month(1+i%12), 1+rng.Intn(28), 9, 0, 0, 0, time.UTC).Format(time.RFC3339),
	}
	start := starts[i%len(starts)]
	return &service.TourInput{
		Name:          &name,
		Duration:      &duration,
		MaxGroupSize:  &group,
		Difficulty:    &difficulty,
		Price:         &price,
		Summary:       &summary,
		ImageCover:    &cover,
		StartDates:    &startDates,
		StartLocation: &start,
	}
}
